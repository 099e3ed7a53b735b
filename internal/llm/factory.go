package llm

import (
	"fmt"
	"os"
)

// NewProvider creates a new LLM provider based on the given provider type.
// Supported types: "anthropic", "openai", "google", "ollama", "minimax",
// "openrouter". API keys come from the conventional environment variables.
func NewProvider(providerType string) (Provider, error) {
	switch providerType {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		return NewAnthropicProvider(apiKey), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey), nil

	case "google":
		apiKey := os.Getenv("GOOGLE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY environment variable is not set")
		}
		return NewGoogleProvider(apiKey), nil

	case "minimax":
		apiKey := os.Getenv("MINIMAX_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("MINIMAX_API_KEY environment variable is not set")
		}
		return NewMinimaxProvider(apiKey), nil

	case "openrouter":
		apiKey := os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable is not set")
		}
		return NewOpenRouterProvider(apiKey), nil

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// Registry holds one client per provider type, shared across all tenants.
type Registry map[string]Provider

// BuildRegistry creates clients for every provider type named by the given
// refs, wrapping each with a rate limiter when rpm > 0. Provider types whose
// credentials are missing are skipped; the failover client treats an absent
// provider as a failed attempt.
func BuildRegistry(refs []ModelRef, rpm int) Registry {
	reg := Registry{}
	for _, ref := range refs {
		if ref.Provider == "" {
			continue
		}
		if _, ok := reg[ref.Provider]; ok {
			continue
		}
		p, err := NewProvider(ref.Provider)
		if err != nil {
			continue
		}
		if rpm > 0 {
			p = NewRateLimitedProvider(p, rpm)
		}
		reg[ref.Provider] = p
	}
	return reg
}
