package config

// defaultModels maps each provider to its default chat model.
var defaultModels = map[ProviderType]string{
	ProviderAnthropic: "claude-sonnet-4-5-20250929",
	ProviderOpenAI:    "gpt-4o",
	ProviderOllama:    "llama3",
}

// DefaultViewPatterns are the glob patterns used to discover view YML files.
var DefaultViewPatterns = []string{"**/*.yml", "**/*.yaml"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderOpenAI,
		Model:          defaultModels[ProviderOpenAI],
		EmbeddingModel: "text-embedding-3-small",
		Cube: CubeConfig{
			BaseURL: "http://localhost:4000",
		},
		ViewsDir:              "views",
		ViewPatterns:          DefaultViewPatterns,
		CacheDir:              ".cubepilot/cache",
		DataDir:               ".cubepilot/data",
		Port:                  8090,
		MaxRetries:            2,
		MaxHistory:            6,
		SuggestionMaxDistance: 3,
		RequestTimeoutSeconds: 60,
	}
}

// DefaultModel returns the default chat model for a provider.
func DefaultModel(provider ProviderType) string {
	return defaultModels[provider]
}
