package provider

import (
	"context"
	"fmt"
	"os"
)

// Settings carries the configuration of every provider. Only the section of the
// requested provider is read.
type Settings struct {
	PollyRegion string

	GCPVoice string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	RemoteURL    string
	RemoteAPIKey string
}

// Factory creates provider instances by name
type Factory struct {
	settings Settings
}

// NewFactory creates a new provider factory
func NewFactory(settings Settings) *Factory {
	return &Factory{settings: settings}
}

// ListProviders returns available provider names
func (f *Factory) ListProviders() []string {
	return []string{"polly", "gcp", "openai", "remote"}
}

// CreateProvider creates a provider instance by name
func (f *Factory) CreateProvider(ctx context.Context, name string) (Provider, error) {
	switch name {
	case "polly":
		region := f.settings.PollyRegion
		if region == "" {
			region = os.Getenv("AWS_REGION")
		}
		return NewPollyProvider(ctx, region)

	case "gcp":
		var opts []GCPProviderOption
		if f.settings.GCPVoice != "" {
			opts = append(opts, WithGCPVoice(f.settings.GCPVoice))
		}
		return NewGCPProvider(ctx, opts...)

	case "openai":
		apiKey := f.settings.OpenAIAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
		}
		return NewOpenAIProvider(apiKey, f.settings.OpenAIBaseURL, f.settings.OpenAIModel), nil

	case "remote":
		if f.settings.RemoteURL == "" {
			return nil, fmt.Errorf("remote provider requires a backend URL")
		}
		return NewRemoteProvider(f.settings.RemoteURL, f.settings.RemoteAPIKey), nil
	}

	return nil, fmt.Errorf("unknown provider: %s", name)
}
