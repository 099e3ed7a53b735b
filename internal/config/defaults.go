package config

import "github.com/ziadkadry99/shoptalk/internal/llm"

// DefaultComplexKeywords are terms that raise the complexity score when
// present in a customer message.
var DefaultComplexKeywords = []string{
	"compare", "calculate", "troubleshoot", "difference", "recommend",
	"explain", "why", "versus", "alternative", "refund policy",
}

// DefaultConfig returns a Config with sensible defaults. Every number the
// routing, grounding, and failover layers use is set here so deployments
// can tune them without code changes.
func DefaultConfig() *Config {
	return &Config{
		Port:                  8080,
		DataDir:               "data",
		LogLevel:              "info",
		LogFormat:             "json",
		RateLimitRPM:          60,
		AttemptTimeoutSeconds: 30,
		SourceBudgetMillis:    2000,
		IdleTimeoutHours:      72,
		Health: HealthConfig{
			WindowSize:       20,
			MinSamples:       10,
			FailureThreshold: 0.5,
		},
		Routing: RoutingConfig{
			LowThreshold:       0.3,
			HighThreshold:      0.7,
			LargeContextTokens: 100_000,
			ComplexKeywords:    DefaultComplexKeywords,
			LargeContext:       llm.ModelRef{Provider: "google", Model: "gemini-1.5-pro"},
			Cheap:              llm.ModelRef{Provider: "openai", Model: "gpt-4o-mini"},
			Premium:            llm.ModelRef{Provider: "anthropic", Model: "claude-sonnet-4-5-20250929"},
			Balanced:           llm.ModelRef{Provider: "anthropic", Model: "claude-haiku-4-5-20251001"},
			Candidates: []llm.ModelRef{
				{Provider: "anthropic", Model: "claude-haiku-4-5-20251001"},
				{Provider: "openai", Model: "gpt-4o-mini"},
				{Provider: "google", Model: "gemini-2.0-flash"},
			},
		},
		Extractor:      llm.ModelRef{Provider: "openai", Model: "gpt-4o-mini"},
		EmbeddingModel: "text-embedding-3-small",
	}
}
