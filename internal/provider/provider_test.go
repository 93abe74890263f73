package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meshlora/meshlora/internal/config"
)

func TestResolve(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Model.Provider = "ollama"
	if p, err := Resolve(cfg); err != nil || p.DefaultModel() != "llama3.2" {
		t.Errorf("ollama resolve = (%v, %v)", p, err)
	}

	cfg.Model.Provider = "openai"
	if _, err := Resolve(cfg); err == nil {
		t.Error("openai without key accepted")
	}
	cfg.Providers.OpenAI.APIKey = "sk-test"
	if _, err := Resolve(cfg); err != nil {
		t.Errorf("openai with key: %v", err)
	}

	cfg.Model.Provider = "none"
	if p, err := Resolve(cfg); err != nil || p.DefaultModel() != "none" {
		t.Errorf("none resolve = (%v, %v)", p, err)
	}

	cfg.Model.Provider = "carrier-pigeon"
	if _, err := Resolve(cfg); err == nil {
		t.Error("unknown provider accepted")
	}
}

func TestNoneProviderStaysSilent(t *testing.T) {
	p := NewNoneProvider()
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello?"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "" || len(resp.ToolCalls) != 0 {
		t.Errorf("resp = %+v, want empty", resp)
	}
}

func TestOllamaChat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{
			"message": {
				"content": "",
				"tool_calls": [{"function": {"name": "get_weather", "arguments": {"x": 1}}}]
			},
			"done_reason": "stop",
			"prompt_eval_count": 12,
			"eval_count": 7
		}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.2")
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages:    []Message{{Role: "user", Content: "weather?"}},
		MaxTokens:   64,
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotBody["stream"] != false {
		t.Error("streaming not disabled")
	}
	if gotBody["model"] != "llama3.2" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "get_weather" {
		t.Errorf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 19 {
		t.Errorf("total tokens = %d, want 19", resp.Usage.TotalTokens)
	}
}

func TestOllamaChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing")
	if _, err := p.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Error("server error not surfaced")
	}
}

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"content": "short answer",
					"tool_calls": [{"id": "call_abc", "function": {"name": "web_search", "arguments": "{\"query\":\"lora\"}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "gpt-4o-mini")
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "short answer" || resp.FinishReason != "tool_calls" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_abc" || tc.Name != "web_search" || tc.Arguments["query"] != "lora" {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestOpenAIChatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "")
	_, err := p.Chat(context.Background(), &ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "empty response") {
		t.Errorf("err = %v, want empty response error", err)
	}
}
