package config

import "github.com/ziadkadry99/shoptalk/internal/llm"

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
	ProviderMiniMax    ProviderType = "minimax"
	ProviderOpenRouter ProviderType = "openrouter"
)

// Config is the top-level shoptalk service configuration, corresponding to
// shoptalk.yml. Tenant-level settings (persona, overrides, weights) live in
// the tenant store, not here.
type Config struct {
	Port            int    `yaml:"port" koanf:"port"`
	DataDir         string `yaml:"data_dir" koanf:"data_dir"`
	AllowAllOrigins bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	LogLevel        string `yaml:"log_level" koanf:"log_level"`
	LogFormat       string `yaml:"log_format" koanf:"log_format"`

	// RateLimitRPM caps requests per minute against each provider client.
	RateLimitRPM int `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`

	// AttemptTimeoutSeconds bounds each single provider attempt.
	AttemptTimeoutSeconds int `yaml:"attempt_timeout_seconds" koanf:"attempt_timeout_seconds"`

	// SourceBudgetMillis bounds each grounding-source lookup.
	SourceBudgetMillis int `yaml:"source_budget_millis" koanf:"source_budget_millis"`

	// IdleTimeoutHours controls when the sweeper marks a conversation inactive.
	IdleTimeoutHours int `yaml:"idle_timeout_hours" koanf:"idle_timeout_hours"`

	Health  HealthConfig  `yaml:"health" koanf:"health"`
	Routing RoutingConfig `yaml:"routing" koanf:"routing"`

	// Extractor is the provider+model used for intent/slot extraction.
	Extractor llm.ModelRef `yaml:"extractor" koanf:"extractor"`

	// EmbeddingModel is the OpenAI embedding model for the knowledge base.
	EmbeddingModel string `yaml:"embedding_model" koanf:"embedding_model"`
}

// HealthConfig controls the provider health tracker.
type HealthConfig struct {
	WindowSize       int     `yaml:"window_size" koanf:"window_size"`
	MinSamples       int     `yaml:"min_samples" koanf:"min_samples"`
	FailureThreshold float64 `yaml:"failure_threshold" koanf:"failure_threshold"`
}

// RoutingConfig holds the service-level routing tiers and thresholds.
// Tenants may override the model bound to each tier but never the
// threshold boundaries, which keeps routing auditable across tenants.
type RoutingConfig struct {
	LowThreshold       float64  `yaml:"low_threshold" koanf:"low_threshold"`
	HighThreshold      float64  `yaml:"high_threshold" koanf:"high_threshold"`
	LargeContextTokens int      `yaml:"large_context_tokens" koanf:"large_context_tokens"`
	ComplexKeywords    []string `yaml:"complex_keywords" koanf:"complex_keywords"`

	LargeContext llm.ModelRef `yaml:"large_context" koanf:"large_context"`
	Cheap        llm.ModelRef `yaml:"cheap" koanf:"cheap"`
	Premium      llm.ModelRef `yaml:"premium" koanf:"premium"`
	Balanced     llm.ModelRef `yaml:"balanced" koanf:"balanced"`

	// Candidates is the service default failover order, used when a tenant
	// configures no candidate list of its own.
	Candidates []llm.ModelRef `yaml:"candidates" koanf:"candidates"`
}
