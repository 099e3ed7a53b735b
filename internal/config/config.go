package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/shoptalk/internal/llm"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (SHOPTALK_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: SHOPTALK_PORT -> port, etc.
	if err := k.Load(env.Provider("SHOPTALK_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "SHOPTALK_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderAnthropic:  true,
	ProviderOpenAI:     true,
	ProviderGoogle:     true,
	ProviderOllama:     true,
	ProviderMiniMax:    true,
	ProviderOpenRouter: true,
}

// ValidProvider reports whether the provider string is in the closed set.
func ValidProvider(provider string) bool {
	return validProviders[ProviderType(provider)]
}

func validateRef(name string, ref llm.ModelRef) error {
	if ref.Provider == "" || ref.Model == "" {
		return fmt.Errorf("%s: provider and model are required", name)
	}
	if !ValidProvider(ref.Provider) {
		return fmt.Errorf("%s: invalid provider %q", name, ref.Provider)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("rate_limit_rpm must be non-negative")
	}
	if c.AttemptTimeoutSeconds <= 0 {
		return fmt.Errorf("attempt_timeout_seconds must be positive")
	}
	if c.SourceBudgetMillis <= 0 {
		return fmt.Errorf("source_budget_millis must be positive")
	}

	h := c.Health
	if h.FailureThreshold <= 0 || h.FailureThreshold >= 1 {
		return fmt.Errorf("health.failure_threshold must be in (0, 1)")
	}
	if h.MinSamples <= 0 {
		return fmt.Errorf("health.min_samples must be positive")
	}
	if h.WindowSize < h.MinSamples {
		return fmt.Errorf("health.window_size must be at least health.min_samples")
	}

	r := c.Routing
	if r.LowThreshold <= 0 || r.HighThreshold >= 1 || r.LowThreshold >= r.HighThreshold {
		return fmt.Errorf("routing thresholds must satisfy 0 < low < high < 1")
	}
	if r.LargeContextTokens <= 0 {
		return fmt.Errorf("routing.large_context_tokens must be positive")
	}
	for name, ref := range map[string]llm.ModelRef{
		"routing.large_context": r.LargeContext,
		"routing.cheap":         r.Cheap,
		"routing.premium":       r.Premium,
		"routing.balanced":      r.Balanced,
		"extractor":             c.Extractor,
	} {
		if err := validateRef(name, ref); err != nil {
			return err
		}
	}
	if len(r.Candidates) == 0 {
		return fmt.Errorf("routing.candidates must list at least one provider")
	}
	for i, ref := range r.Candidates {
		if err := validateRef(fmt.Sprintf("routing.candidates[%d]", i), ref); err != nil {
			return err
		}
	}

	return nil
}

// AttemptTimeout returns the per-attempt provider timeout as a Duration.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

// SourceBudget returns the per-source grounding budget as a Duration.
func (c *Config) SourceBudget() time.Duration {
	return time.Duration(c.SourceBudgetMillis) * time.Millisecond
}

// IdleTimeout returns the conversation idle timeout as a Duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutHours) * time.Hour
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderMiniMax:
		return "MINIMAX_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}
