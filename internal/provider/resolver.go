package provider

import (
	"fmt"

	"github.com/meshlora/meshlora/internal/config"
)

// Resolve builds the provider named by the model configuration.
func Resolve(cfg *config.Config) (LLMProvider, error) {
	switch cfg.Model.Provider {
	case "ollama":
		return NewOllamaProvider(cfg.Providers.Ollama.BaseURL, cfg.Model.Name), nil
	case "openai":
		if cfg.Providers.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("provider openai: missing API key")
		}
		return NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, cfg.Model.Name), nil
	case "none", "":
		return NewNoneProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Model.Provider)
	}
}
