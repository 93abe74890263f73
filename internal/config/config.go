// Package config provides configuration types and loading for meshlora.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Transport, Model, Providers, Filter, Bridge, Tools, Monitor.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Transport TransportConfig `json:"transport"`
	Model     ModelConfig     `json:"model"`
	Providers ProvidersConfig `json:"providers"`
	Filter    FilterConfig    `json:"filter"`
	Bridge    BridgeConfig    `json:"bridge"`
	Tools     ToolsConfig     `json:"tools"`
	Monitor   MonitorConfig   `json:"monitor"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	Database string `json:"database" envconfig:"DATABASE"`
}

// ---------------------------------------------------------------------------
// Transport – radio daemon connection
// ---------------------------------------------------------------------------

// TransportConfig selects and addresses the mesh transport.
type TransportConfig struct {
	Kind    string `json:"kind" envconfig:"KIND"`       // "tcp" or "fake"
	Address string `json:"address" envconfig:"ADDRESS"` // host:port for tcp
}

// ---------------------------------------------------------------------------
// Model – LLM behaviour
// ---------------------------------------------------------------------------

// ModelConfig groups LLM model and composer settings.
type ModelConfig struct {
	Provider          string  `json:"provider" envconfig:"PROVIDER"` // ollama, openai, none
	Name              string  `json:"name" envconfig:"NAME"`
	MaxTokens         int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature       float64 `json:"temperature" envconfig:"TEMPERATURE"`
	MaxToolIterations int     `json:"maxToolIterations" envconfig:"MAX_TOOL_ITERATIONS"`
	ReplyBudgetBytes  int     `json:"replyBudgetBytes" envconfig:"REPLY_BUDGET_BYTES"`
	SystemPrompt      string  `json:"systemPrompt,omitempty" envconfig:"SYSTEM_PROMPT"`
}

// ---------------------------------------------------------------------------
// Providers – LLM endpoints & keys
// ---------------------------------------------------------------------------

// ProvidersConfig contains LLM provider configurations.
type ProvidersConfig struct {
	Ollama OllamaConfig   `json:"ollama"`
	OpenAI ProviderConfig `json:"openai"`
}

// OllamaConfig contains settings for a local Ollama server.
type OllamaConfig struct {
	BaseURL string `json:"baseUrl" envconfig:"BASE_URL"`
}

// ProviderConfig contains settings for an OpenAI-compatible provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ---------------------------------------------------------------------------
// Filter – content safety and rate limiting
// ---------------------------------------------------------------------------

// FilterConfig configures the safety gate.
type FilterConfig struct {
	Strict        bool `json:"strict" envconfig:"STRICT"`
	MaxMessages   int  `json:"maxMessages" envconfig:"MAX_MESSAGES"`
	WindowSeconds int  `json:"windowSeconds" envconfig:"WINDOW_SECONDS"`
}

// ---------------------------------------------------------------------------
// Bridge – ingestion loop and outbox poller
// ---------------------------------------------------------------------------

// BridgeConfig configures the bridge process loops.
type BridgeConfig struct {
	AutoRespond       bool          `json:"autoRespond" envconfig:"AUTO_RESPOND"`
	Workers           int           `json:"workers" envconfig:"WORKERS"`
	OutboxInterval    time.Duration `json:"outboxInterval"`
	OutboxMaxAttempts int           `json:"outboxMaxAttempts" envconfig:"OUTBOX_MAX_ATTEMPTS"`
	StaleClaimAfter   time.Duration `json:"staleClaimAfter"`
	ReconnectAttempts int           `json:"reconnectAttempts" envconfig:"RECONNECT_ATTEMPTS"`
}

// ---------------------------------------------------------------------------
// Tools – composer capabilities
// ---------------------------------------------------------------------------

// ToolsConfig contains tool settings.
type ToolsConfig struct {
	Weather WeatherConfig   `json:"weather"`
	Search  WebSearchConfig `json:"search"`
}

// WeatherConfig configures the weather tool.
type WeatherConfig struct {
	Enabled   bool    `json:"enabled" envconfig:"ENABLED"`
	Latitude  float64 `json:"latitude" envconfig:"LATITUDE"`
	Longitude float64 `json:"longitude" envconfig:"LONGITUDE"`
}

// WebSearchConfig configures the web search tool.
type WebSearchConfig struct {
	Enabled bool `json:"enabled" envconfig:"ENABLED"`
}

// ---------------------------------------------------------------------------
// Monitor – dashboard process
// ---------------------------------------------------------------------------

// MonitorConfig configures the monitoring process.
type MonitorConfig struct {
	PollInterval time.Duration `json:"pollInterval"`
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:    "tcp",
			Address: "localhost:4403",
		},
		Model: ModelConfig{
			Provider:          "ollama",
			Name:              "llama3.2",
			MaxTokens:         300,
			Temperature:       0.7,
			MaxToolIterations: 4,
			ReplyBudgetBytes:  200,
		},
		Providers: ProvidersConfig{
			Ollama: OllamaConfig{BaseURL: "http://localhost:11434"},
		},
		Filter: FilterConfig{
			Strict:        true,
			MaxMessages:   5,
			WindowSeconds: 60,
		},
		Bridge: BridgeConfig{
			AutoRespond:       true,
			Workers:           4,
			OutboxInterval:    5 * time.Second,
			OutboxMaxAttempts: 3,
			StaleClaimAfter:   2 * time.Minute,
			ReconnectAttempts: 10,
		},
		Tools: ToolsConfig{
			Weather: WeatherConfig{Enabled: true, Latitude: 45.52, Longitude: -122.68},
			Search:  WebSearchConfig{Enabled: true},
		},
		Monitor: MonitorConfig{
			PollInterval: 2 * time.Second,
		},
	}
}
