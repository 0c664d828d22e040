package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ziadkadry99/cube-pilot/internal/config"
	"github.com/ziadkadry99/cube-pilot/internal/conversation"
	"github.com/ziadkadry99/cube-pilot/internal/cube"
	"github.com/ziadkadry99/cube-pilot/internal/db"
	"github.com/ziadkadry99/cube-pilot/internal/embeddings"
	"github.com/ziadkadry99/cube-pilot/internal/llm"
	"github.com/ziadkadry99/cube-pilot/internal/orchestrator"
	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `cubepilot init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createLLMProviderFromConfig creates an LLM provider based on config
// settings, with rate limiting when rpm is set.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.RPM > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RPM)
	}
	return provider, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder for schema search.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	model := cfg.EmbeddingModel
	switch cfg.Provider {
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(model, 768, ""), nil
	default:
		// Anthropic has no embeddings API; OpenAI serves both cases.
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required (used for embeddings when provider is %s)", cfg.Provider)
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model)), nil
	}
}

// createFetcherFromConfig creates the metadata fetcher, minting a Cube API
// token when a secret is configured.
func createFetcherFromConfig(cfg *config.Config) (*schema.Fetcher, error) {
	var token string
	if cfg.Cube.APISecret != "" {
		t, err := cube.SignToken(cfg.Cube.APISecret, time.Hour)
		if err != nil {
			return nil, fmt.Errorf("signing cube token: %w", err)
		}
		token = t
	}
	return schema.NewFetcher(schema.FetcherOptions{
		BaseURL:      cfg.Cube.BaseURL,
		Token:        token,
		CacheDir:     cfg.CacheDir,
		ViewsDir:     cfg.ViewsDir,
		ViewPatterns: cfg.ViewPatterns,
	}), nil
}

// createCubeClientFromConfig creates the query execution client.
func createCubeClientFromConfig(cfg *config.Config) *cube.Client {
	return cube.NewClient(cube.Options{
		BaseURL:   cfg.Cube.BaseURL,
		APISecret: cfg.Cube.APISecret,
		Timeout:   time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	})
}

// openStore opens the session database under the data dir. The caller owns
// the returned DB and must close it.
func openStore(cfg *config.Config) (*db.DB, *conversation.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data dir: %w", err)
	}
	database, err := db.Open(filepath.Join(cfg.DataDir, "cubepilot.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening session database: %w", err)
	}
	return database, conversation.NewStore(database), nil
}

// createOrchestratorFromConfig wires the full pipeline. The store may be nil
// for one-shot commands that do not persist sessions.
func createOrchestratorFromConfig(cfg *config.Config, store *conversation.Store) (*orchestrator.Orchestrator, error) {
	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	fetcher, err := createFetcherFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	return orchestrator.New(orchestrator.Options{
		Provider:              provider,
		Model:                 cfg.Model,
		Fetcher:               fetcher,
		Executor:              createCubeClientFromConfig(cfg),
		Store:                 store,
		ViewName:              cfg.ViewName,
		CacheDir:              cfg.CacheDir,
		ReportDir:             filepath.Join(cfg.DataDir, "reports"),
		MaxRetries:            cfg.MaxRetries,
		MaxHistory:            cfg.MaxHistory,
		SuggestionMaxDistance: cfg.SuggestionMaxDistance,
		Verbose:               verbose,
	}), nil
}

// createSearcher builds and indexes the semantic schema searcher. Errors are
// logged and swallowed so a missing embeddings key degrades search rather
// than blocking queries.
func createSearcher(cfg *config.Config, catalog *schema.Catalog) *schema.Searcher {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		log.Printf("cmd: schema search disabled: %v", err)
		return nil
	}
	searcher, err := schema.NewSearcher(catalog, embedder)
	if err != nil {
		log.Printf("cmd: schema search disabled: %v", err)
		return nil
	}
	return searcher
}
