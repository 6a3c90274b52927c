package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

// OpenAIProvider implements the Provider interface for the OpenAI speech API
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI TTS provider. baseURL may be empty.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = openai.SpeechModelTTS1
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// ListVoices returns the built-in OpenAI voices. They are multilingual, so the
// locale filter does not apply.
func (p *OpenAIProvider) ListVoices(ctx context.Context, locale string) ([]Voice, error) {
	return []Voice{
		{ID: "alloy", Name: "Alloy", Language: "multi", Gender: "neutral", Description: "Balanced, clear voice"},
		{ID: "echo", Name: "Echo", Language: "multi", Gender: "male", Description: "Deep, resonant voice"},
		{ID: "fable", Name: "Fable", Language: "multi", Gender: "neutral", Description: "Expressive, storytelling voice"},
		{ID: "onyx", Name: "Onyx", Language: "multi", Gender: "male", Description: "Strong, authoritative voice"},
		{ID: "nova", Name: "Nova", Language: "multi", Gender: "female", Description: "Bright, energetic voice"},
		{ID: "shimmer", Name: "Shimmer", Language: "multi", Gender: "female", Description: "Warm, friendly voice"},
	}, nil
}

// Synthesize generates audio from text using the OpenAI speech API
func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voice := options.Voice
	if voice == "" {
		voice = DefaultVoice("openai", options.Locale)
	}
	format := options.Format
	if format == "" {
		format = "mp3"
	}

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          p.model,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(format),
		Speed:          openai.Float(clampSpeed(options.Speed)),
	}

	log.Debug().Str("voice", voice).Str("model", p.model).Str("format", format).Msg("Making OpenAI speech request")

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("OpenAI API error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	return resp.Body, nil
}

// IsAvailable checks if the OpenAI API accepts the configured key
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.client.Models.Get(checkCtx, p.model)
	return err == nil
}
