package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const searchAnswerLimit = 500

// SearchTool answers factual questions through the DuckDuckGo Instant
// Answer API. No key required; results are short enough for radio replies.
type SearchTool struct {
	baseURL    string
	httpClient *http.Client
}

// NewSearchTool creates a web search tool.
func NewSearchTool() *SearchTool {
	return &SearchTool{
		baseURL: "https://api.duckduckgo.com/",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *SearchTool) Name() string { return "web_search" }

func (t *SearchTool) Description() string {
	return "Search the web for a concise factual answer to a question"
}

func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
		},
		"required": []string{"query"},
	}
}

type instantAnswer struct {
	AbstractText  string `json:"AbstractText"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

// Execute queries the instant answer API and returns the best snippet.
func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query := strings.TrimSpace(GetString(params, "query", ""))
	if query == "" {
		return "", fmt.Errorf("missing query")
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, "GET", t.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search unavailable: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var data instantAnswer
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("parse results: %w", err)
	}

	if data.AbstractText != "" {
		return truncate(data.AbstractText, searchAnswerLimit), nil
	}
	if data.Answer != "" {
		return truncate(data.Answer, searchAnswerLimit), nil
	}
	var snippets []string
	for _, topic := range data.RelatedTopics {
		if topic.Text == "" {
			continue
		}
		snippets = append(snippets, truncate(topic.Text, 150))
		if len(snippets) == 3 {
			break
		}
	}
	if len(snippets) > 0 {
		return strings.Join(snippets, " | "), nil
	}
	return "No results found.", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
