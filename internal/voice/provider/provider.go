package provider

import (
	"context"
	"io"
)

// Provider defines the interface for TTS providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// ListVoices returns available voices, filtered by locale when one is given
	ListVoices(ctx context.Context, locale string) ([]Voice, error)

	// Synthesize generates audio from text and returns an audio stream
	Synthesize(ctx context.Context, text string, options SynthesizeOptions) (io.ReadCloser, error)

	// IsAvailable checks if the provider is available (can be used)
	IsAvailable(ctx context.Context) bool
}

// Voice represents a voice option
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	Gender      string `json:"gender,omitempty"`
	Description string `json:"description,omitempty"`
}

// SynthesizeOptions contains options for text synthesis
type SynthesizeOptions struct {
	Voice      string  `json:"voice,omitempty"`
	Locale     string  `json:"locale,omitempty"`      // BCP-47 locale, e.g. zh-CN
	Speed      float64 `json:"speed,omitempty"`       // Speed multiplier (0.25-4.0)
	Format     string  `json:"format,omitempty"`      // Output format (mp3, ogg, wav)
	Engine     string  `json:"engine,omitempty"`      // Provider engine tier
	SampleRate string  `json:"sample_rate,omitempty"` // Output sample rate in Hz
}

// defaultVoices maps provider and locale to a voice that speaks it natively
var defaultVoices = map[string]map[string]string{
	"polly": {
		"zh-CN": "Zhiyu",
		"en-US": "Joanna",
		"ja-JP": "Kazuha",
	},
	"gcp": {
		"zh-CN": "cmn-CN-Wavenet-A",
		"en-US": "en-US-Neural2-F",
		"ja-JP": "ja-JP-Neural2-B",
	},
	"openai": {
		"zh-CN": "nova",
		"en-US": "alloy",
		"ja-JP": "shimmer",
	},
}

// DefaultVoice returns the default voice of a provider for a locale
func DefaultVoice(providerName, locale string) string {
	voices, ok := defaultVoices[providerName]
	if !ok {
		return ""
	}
	if v, ok := voices[locale]; ok {
		return v
	}
	return voices["en-US"]
}

func clampSpeed(speed float64) float64 {
	if speed <= 0 {
		return 1.0
	}
	return min(4.0, max(0.25, speed))
}
