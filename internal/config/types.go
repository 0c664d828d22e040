package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderOllama    ProviderType = "ollama"
)

// Config is the top-level cube-pilot configuration, corresponding to .cubepilot.yml.
type Config struct {
	Provider       ProviderType `yaml:"provider" koanf:"provider"`
	Model          string       `yaml:"model" koanf:"model"`
	EmbeddingModel string       `yaml:"embedding_model" koanf:"embedding_model"`

	Cube CubeConfig `yaml:"cube" koanf:"cube"`

	// ViewsDir holds Cube view YML files used when the live metadata API
	// is unreachable. ViewPatterns filters which files are loaded.
	ViewsDir     string   `yaml:"views_dir" koanf:"views_dir"`
	ViewPatterns []string `yaml:"view_patterns" koanf:"view_patterns"`
	ViewName     string   `yaml:"view_name" koanf:"view_name"`

	CacheDir string `yaml:"cache_dir" koanf:"cache_dir"`
	DataDir  string `yaml:"data_dir" koanf:"data_dir"`
	Port     int    `yaml:"port" koanf:"port"`

	// MaxRetries bounds the validate-correct-execute loop per query.
	MaxRetries int `yaml:"max_retries" koanf:"max_retries"`
	// MaxHistory bounds the LLM-facing conversation window.
	MaxHistory int `yaml:"max_history" koanf:"max_history"`
	// SuggestionMaxDistance is the edit-distance cutoff for schema suggestions.
	SuggestionMaxDistance int `yaml:"suggestion_max_distance" koanf:"suggestion_max_distance"`

	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" koanf:"request_timeout_seconds"`
	RPM                   int `yaml:"rpm" koanf:"rpm"`
}

// CubeConfig holds connection settings for the Cube.js API.
type CubeConfig struct {
	BaseURL   string `yaml:"base_url" koanf:"base_url"`
	APISecret string `yaml:"api_secret" koanf:"api_secret"`
}
