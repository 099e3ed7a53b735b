package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.AttemptTimeoutSeconds != 30 {
		t.Errorf("expected default attempt timeout 30s, got %d", cfg.AttemptTimeoutSeconds)
	}
	if cfg.Health.MinSamples != 10 {
		t.Errorf("expected default min_samples 10, got %d", cfg.Health.MinSamples)
	}
	if cfg.Routing.LowThreshold != 0.3 || cfg.Routing.HighThreshold != 0.7 {
		t.Errorf("unexpected routing thresholds: %f / %f",
			cfg.Routing.LowThreshold, cfg.Routing.HighThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shoptalk.yml")

	original := DefaultConfig()
	original.Port = 9090
	original.DataDir = "var/shoptalk"
	original.Routing.HighThreshold = 0.8
	original.Extractor.Provider = "anthropic"
	original.Extractor.Model = "claude-haiku-4-5-20251001"

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Port != original.Port {
		t.Errorf("port: got %d, want %d", loaded.Port, original.Port)
	}
	if loaded.DataDir != original.DataDir {
		t.Errorf("data_dir: got %q, want %q", loaded.DataDir, original.DataDir)
	}
	if loaded.Routing.HighThreshold != 0.8 {
		t.Errorf("routing.high_threshold: got %f, want 0.8", loaded.Routing.HighThreshold)
	}
	if loaded.Extractor != original.Extractor {
		t.Errorf("extractor: got %+v, want %+v", loaded.Extractor, original.Extractor)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err != nil {
		t.Fatalf("Load with missing file should not fail: %v", err)
	}
	if cfg.Port != DefaultConfig().Port {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SHOPTALK_PORT", "9999")

	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("expected env override port 9999, got %d", cfg.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"inverted thresholds", func(c *Config) { c.Routing.LowThreshold = 0.9 }},
		{"threshold out of range", func(c *Config) { c.Health.FailureThreshold = 1.5 }},
		{"unknown provider", func(c *Config) { c.Routing.Cheap.Provider = "llamacorp" }},
		{"no candidates", func(c *Config) { c.Routing.Candidates = nil }},
		{"window below samples", func(c *Config) { c.Health.WindowSize = 3 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}
