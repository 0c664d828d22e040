package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected openai default provider, got %q", cfg.Provider)
	}
	if cfg.Cube.BaseURL != "http://localhost:4000" {
		t.Errorf("unexpected default cube url: %q", cfg.Cube.BaseURL)
	}
	if cfg.MaxRetries != 2 || cfg.MaxHistory != 6 || cfg.SuggestionMaxDistance != 3 {
		t.Errorf("unexpected default limits: retries=%d history=%d distance=%d",
			cfg.MaxRetries, cfg.MaxHistory, cfg.SuggestionMaxDistance)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cubepilot.yml")
	content := `provider: anthropic
model: claude-sonnet-4-20250514
view_name: Orders
cube:
  base_url: http://cube.internal:4000
  api_secret: secret
max_retries: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != ProviderAnthropic {
		t.Errorf("unexpected provider: %q", cfg.Provider)
	}
	if cfg.Cube.BaseURL != "http://cube.internal:4000" || cfg.Cube.APISecret != "secret" {
		t.Errorf("unexpected cube config: %+v", cfg.Cube)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("unexpected max_retries: %d", cfg.MaxRetries)
	}
	// Unset keys keep their defaults.
	if cfg.Port != 8090 {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cubepilot.yml")
	if err := os.WriteFile(path, []byte("cube:\n  base_url: http://from-file:4000\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("CUBEPILOT_CUBE__BASE_URL", "http://from-env:4000")
	t.Setenv("CUBEPILOT_PROVIDER", "ollama")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cube.BaseURL != "http://from-env:4000" {
		t.Errorf("env override lost: %q", cfg.Cube.BaseURL)
	}
	if cfg.Provider != ProviderOllama {
		t.Errorf("expected ollama from env, got %q", cfg.Provider)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing provider", func(c *Config) { c.Provider = "" }},
		{"unknown provider", func(c *Config) { c.Provider = "gemini" }},
		{"missing model", func(c *Config) { c.Model = "" }},
		{"missing cube url", func(c *Config) { c.Cube.BaseURL = "" }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero history", func(c *Config) { c.MaxHistory = 0 }},
		{"negative distance", func(c *Config) { c.SuggestionMaxDistance = -1 }},
		{"bad port", func(c *Config) { c.Port = 70000 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cubepilot.yml")

	cfg := DefaultConfig()
	cfg.Provider = ProviderAnthropic
	cfg.Model = "claude-sonnet-4-20250514"
	cfg.ViewName = "Orders"
	cfg.Cube.BaseURL = "http://cube:4000"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != cfg.Provider || loaded.Model != cfg.Model {
		t.Errorf("roundtrip lost provider/model: %+v", loaded)
	}
	if loaded.ViewName != "Orders" || loaded.Cube.BaseURL != "http://cube:4000" {
		t.Errorf("roundtrip lost fields: %+v", loaded)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	if got := APIKeyEnvVar(ProviderAnthropic); got != "ANTHROPIC_API_KEY" {
		t.Errorf("unexpected env var: %q", got)
	}
	if got := APIKeyEnvVar(ProviderOllama); got != "" {
		t.Errorf("ollama needs no key, got %q", got)
	}
}
