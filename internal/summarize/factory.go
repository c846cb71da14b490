package summarize

import (
	"fmt"
	"os"

	"github.com/chatlens/chatlens/internal/config"
)

// NewClientFromConfig builds a provider client from the configuration,
// falling back to the conventional environment variables for anything the
// config leaves blank.
func NewClientFromConfig(cfg *config.Config) (Client, string, error) {
	provider := cfg.LLMProvider
	if provider == "" {
		provider = os.Getenv("LLM_PROVIDER")
	}
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai":
		apiKey := firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
		if apiKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		model := firstNonEmpty(cfg.Model, os.Getenv("OPENAI_MODEL"), "gpt-4o-mini")
		baseURL := firstNonEmpty(cfg.BaseURL, os.Getenv("OPENAI_BASE_URL"))

		client, err := NewOpenAIClient(apiKey, model, baseURL)
		if err != nil {
			return nil, "", err
		}
		return client, model, nil

	case "anthropic":
		apiKey := firstNonEmpty(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if apiKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		model := firstNonEmpty(cfg.Model, os.Getenv("ANTHROPIC_MODEL"), "claude-3-5-haiku-latest")

		client, err := NewAnthropicClient(apiKey, model)
		if err != nil {
			return nil, "", err
		}
		return client, model, nil

	default:
		return nil, "", fmt.Errorf("unsupported provider: %s (use 'openai' or 'anthropic')", provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
