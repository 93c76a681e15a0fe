package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no sources", func(c *Config) { c.Sources = nil }},
		{"missing base_url", func(c *Config) {
			s := c.Sources["birdeye"]
			s.BaseURL = ""
			c.Sources["birdeye"] = s
		}},
		{"zero max_calls", func(c *Config) {
			s := c.Sources["rugcheck"]
			s.MaxCalls = 0
			c.Sources["rugcheck"] = s
		}},
		{"negative tolerance", func(c *Config) { c.Aggregator.DivergenceTolerance = -1 }},
		{"floor above comfort", func(c *Config) { c.Scorer.SafetyFloor = 90; c.Scorer.SafetyComfort = 50 }},
		{"tax ceiling out of range", func(c *Config) { c.Scorer.MaxAcceptableTax = 1.5 }},
		{"zero message length", func(c *Config) { c.Alert.MaxMessageLength = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("error must wrap ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestValidate_DisabledSourceSkipped(t *testing.T) {
	cfg := Default()
	s := cfg.Sources["pumpfun"]
	s.Enabled = false
	s.BaseURL = ""
	cfg.Sources["pumpfun"] = s

	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled source must not be validated: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TW_TEST_API_KEY", "secret-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
sources:
  birdeye:
    enabled: true
    base_url: https://public-api.birdeye.so
    api_key: ${TW_TEST_API_KEY}
    max_calls: 10
    window_seconds: 60
    cache_ttl_seconds: 60
    timeout_seconds: 5
    priority: 1
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Sources["birdeye"].APIKey; got != "secret-key" {
		t.Errorf("expected expanded api key, got %q", got)
	}
	// Omitted sections keep defaults.
	if cfg.Scorer.SafetyFloor != 40 {
		t.Errorf("expected default safety_floor 40, got %v", cfg.Scorer.SafetyFloor)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
