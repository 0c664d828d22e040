package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to cube-pilot! Let's configure your analytics assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "anthropic", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.Model = DefaultModel(cfg.Provider)

	// 2. Cube API base URL.
	cubePrompt := promptui.Prompt{
		Label:   "Cube.js API base URL",
		Default: cfg.Cube.BaseURL,
	}
	baseURL, err := cubePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("cube base url: %w", err)
	}
	cfg.Cube.BaseURL = baseURL

	// 3. API secret. Left empty here when it comes from the environment.
	secretPrompt := promptui.Prompt{
		Label:   "Cube.js API secret (empty to use CUBEPILOT_CUBE__API_SECRET)",
		Mask:    '*',
		Default: "",
	}
	secret, err := secretPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("cube api secret: %w", err)
	}
	cfg.Cube.APISecret = secret

	// 4. View name to query against.
	viewPrompt := promptui.Prompt{
		Label:   "Cube view name (e.g. Orders)",
		Default: cfg.ViewName,
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("view name is required")
			}
			return nil
		},
	}
	viewName, err := viewPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("view name: %w", err)
	}
	cfg.ViewName = viewName

	// 5. Directory with view YML files for offline fallback.
	viewsDirPrompt := promptui.Prompt{
		Label:   "Directory containing Cube view YML files",
		Default: cfg.ViewsDir,
	}
	viewsDir, err := viewsDirPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("views dir: %w", err)
	}
	cfg.ViewsDir = viewsDir

	// 6. Retry budget for the validation loop.
	retryPrompt := promptui.Prompt{
		Label:   "Max query correction retries",
		Default: strconv.Itoa(cfg.MaxRetries),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return fmt.Errorf("must be a non-negative integer")
			}
			return nil
		},
	}
	retryStr, err := retryPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("max retries: %w", err)
	}
	cfg.MaxRetries, _ = strconv.Atoi(retryStr)

	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: %s is not set. Set it before running queries.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	fmt.Printf("\nConfiguration saved to %s\n", path)

	return cfg, nil
}
