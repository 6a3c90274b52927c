package voice

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/storyspeak/storyspeak/internal/audio"
	"github.com/storyspeak/storyspeak/internal/config"
	"github.com/storyspeak/storyspeak/internal/voice/provider"
)

// NewSynthesizer creates the speech engine selected in cfg. The player plays
// audio produced by cloud providers.
func NewSynthesizer(ctx context.Context, cfg *config.Config, player audio.Player) (audio.Synthesizer, error) {
	voices := languageVoices(cfg.Speech.Voices)

	switch cfg.Speech.Engine {
	case "", "system":
		engine, err := NewSystemEngine(SystemConfig{Voices: voices, Speed: cfg.Speech.Speed})
		if err != nil {
			return nil, err
		}
		log.Debug().Str("command", engine.Command()).Msg("Using system speech engine")
		return engine, nil

	case "cloud":
		p, err := provider.NewFactory(cfg.ProviderSettings()).CreateProvider(ctx, cfg.Speech.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to create TTS provider: %w", err)
		}
		var engine, sampleRate string
		if p.Name() == "polly" {
			engine = cfg.Providers.Polly.Engine
			sampleRate = cfg.Providers.Polly.SampleRate
		}
		log.Debug().Str("provider", p.Name()).Msg("Using cloud speech engine")
		return NewCloudEngine(p, player, CloudConfig{
			Voices:     voices,
			Speed:      cfg.Speech.Speed,
			Format:     cfg.Speech.Format,
			Engine:     engine,
			SampleRate: sampleRate,
		}), nil
	}

	return nil, fmt.Errorf("unknown speech engine: %s", cfg.Speech.Engine)
}

// ListVoices returns the voices of one provider, or of every provider that can
// be created and reached when providerName is empty
func ListVoices(ctx context.Context, factory *provider.Factory, providerName, locale string) ([]provider.Voice, error) {
	if providerName != "" {
		p, err := factory.CreateProvider(ctx, providerName)
		if err != nil {
			return nil, err
		}
		if !p.IsAvailable(ctx) {
			return nil, fmt.Errorf("provider %s is not available", providerName)
		}
		return p.ListVoices(ctx, locale)
	}

	var allVoices []provider.Voice
	for _, name := range factory.ListProviders() {
		p, err := factory.CreateProvider(ctx, name)
		if err != nil {
			log.Debug().Err(err).Str("provider", name).Msg("Provider not configured")
			continue
		}
		if !p.IsAvailable(ctx) {
			continue
		}
		voices, err := p.ListVoices(ctx, locale)
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("Failed to get voices from provider")
			continue
		}
		allVoices = append(allVoices, voices...)
	}
	return allVoices, nil
}

// languageVoices converts config voice keys to languages, skipping unsupported ones
func languageVoices(voices map[string]string) map[audio.Language]string {
	out := make(map[audio.Language]string, len(voices))
	for tag, v := range voices {
		lang, err := audio.ParseLanguage(tag)
		if err != nil {
			log.Warn().Str("language", tag).Msg("Ignoring voice for unsupported language")
			continue
		}
		out[lang] = v
	}
	return out
}
