package story

import (
	"fmt"
	"os"

	"github.com/storyspeak/storyspeak/internal/config"
)

// LoadConfiguredCatalog returns the catalog file named in cfg, or the
// built-in stories when none is set
func LoadConfiguredCatalog(cfg *config.Config) (*Catalog, error) {
	if cfg.Story.CatalogPath == "" {
		return BuiltinCatalog(), nil
	}
	return LoadCatalog(cfg.Story.CatalogPath)
}

// NewGenerator creates the generator for cfg.Story.Source wrapped in a
// fallback to catalog
func NewGenerator(cfg *config.Config, catalog *Catalog) (Generator, error) {
	var primary Generator

	switch cfg.Story.Source {
	case "", "local":
	case "backend":
		if cfg.Backend.URL == "" {
			return nil, fmt.Errorf("backend story source requires backend.url")
		}
		primary = NewBackendGenerator(cfg.Backend.URL, cfg.Backend.APIKey, cfg.BackendTimeout())
	case "openai":
		apiKey := cfg.Providers.OpenAI.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
		}
		primary = NewOpenAIGenerator(apiKey, cfg.Providers.OpenAI.BaseURL, cfg.Providers.OpenAI.ChatModel)
	default:
		return nil, fmt.Errorf("unknown story source: %s", cfg.Story.Source)
	}

	return NewFallbackGenerator(primary, catalog), nil
}
