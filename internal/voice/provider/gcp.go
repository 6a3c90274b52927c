package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPClient is the subset of the Cloud Text-to-Speech client we use
type GCPClient interface {
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// GCPProvider implements the Provider interface for Google Cloud Text-to-Speech
type GCPProvider struct {
	client GCPClient
	voice  string
}

// GCPProviderOption is a functional option for configuring GCPProvider
type GCPProviderOption func(*GCPProvider)

// WithGCPVoice sets a voice used for every locale
func WithGCPVoice(voice string) GCPProviderOption {
	return func(p *GCPProvider) {
		p.voice = voice
	}
}

// WithGCPClient injects a client instead of dialing the service
func WithGCPClient(client GCPClient) GCPProviderOption {
	return func(p *GCPProvider) {
		p.client = client
	}
}

// NewGCPProvider creates a new Google Cloud TTS provider.
// Authentication uses GOOGLE_APPLICATION_CREDENTIALS or Application Default Credentials.
func NewGCPProvider(ctx context.Context, opts ...GCPProviderOption) (*GCPProvider, error) {
	p := &GCPProvider{}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		client, err := texttospeech.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP TTS client: %w", err)
		}
		p.client = client
	}

	return p, nil
}

// Name returns the provider name
func (p *GCPProvider) Name() string {
	return "gcp"
}

// ListVoices returns available voices from Google Cloud TTS
func (p *GCPProvider) ListVoices(ctx context.Context, locale string) ([]Voice, error) {
	req := &texttospeechpb.ListVoicesRequest{}
	if locale != "" {
		req.LanguageCode = gcpLanguageCode(locale)
	}

	resp, err := p.client.ListVoices(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list GCP voices: %w", err)
	}

	var voices []Voice
	for _, v := range resp.Voices {
		gender := "unknown"
		switch v.SsmlGender {
		case texttospeechpb.SsmlVoiceGender_MALE:
			gender = "male"
		case texttospeechpb.SsmlVoiceGender_FEMALE:
			gender = "female"
		case texttospeechpb.SsmlVoiceGender_NEUTRAL:
			gender = "neutral"
		}

		lang := ""
		if len(v.LanguageCodes) > 0 {
			lang = v.LanguageCodes[0]
		}
		voices = append(voices, Voice{
			ID:          v.Name,
			Name:        v.Name,
			Language:    lang,
			Gender:      gender,
			Description: fmt.Sprintf("%s voice (%s)", detectEngineType(v.Name), strings.Join(v.LanguageCodes, ", ")),
		})
	}

	log.Debug().Int("count", len(voices)).Msg("Listed GCP TTS voices")
	return voices, nil
}

// Synthesize generates audio from text using Google Cloud TTS
func (p *GCPProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voice := options.Voice
	if voice == "" {
		voice = p.voice
	}
	if voice == "" {
		voice = DefaultVoice("gcp", options.Locale)
	}

	languageCode := gcpLanguageCode(options.Locale)
	if options.Locale == "" {
		// ja-JP-Neural2-B -> ja-JP
		parts := strings.Split(voice, "-")
		if len(parts) >= 2 {
			languageCode = parts[0] + "-" + parts[1]
		}
	}

	input := &texttospeechpb.SynthesisInput{
		InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
	}
	if isSSML(text) {
		input.InputSource = &texttospeechpb.SynthesisInput_Ssml{Ssml: text}
		log.Debug().Msg("Using SSML input for GCP TTS")
	}

	audioConfig := &texttospeechpb.AudioConfig{
		AudioEncoding:   getAudioEncoding(options.Format),
		SpeakingRate:    clampSpeed(options.Speed),
		SampleRateHertz: getSampleRate(options.SampleRate),
	}

	log.Debug().
		Str("voice", voice).
		Str("language", languageCode).
		Str("format", options.Format).
		Float64("speed", audioConfig.SpeakingRate).
		Msg("Making GCP TTS synthesis request")

	resp, err := p.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input:       input,
		Voice:       &texttospeechpb.VoiceSelectionParams{LanguageCode: languageCode, Name: voice},
		AudioConfig: audioConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", describeGRPCError(err))
	}

	log.Debug().Int("audio_bytes", len(resp.AudioContent)).Msg("GCP TTS synthesis successful")
	return io.NopCloser(bytes.NewReader(resp.AudioContent)), nil
}

// IsAvailable checks if the GCP TTS service is available
func (p *GCPProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: "en-US"})
	return err == nil
}

// Close closes the GCP client
func (p *GCPProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// describeGRPCError adds a hint for errors caused by local setup
func describeGRPCError(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w (check GOOGLE_APPLICATION_CREDENTIALS)", err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w (check the voice name matches the language)", err)
	}
	return err
}

// gcpLanguageCode maps practice locales to Cloud TTS language codes
func gcpLanguageCode(locale string) string {
	if locale == "zh-CN" {
		return "cmn-CN"
	}
	return locale
}

// detectEngineType determines the engine type from voice name
func detectEngineType(voiceName string) string {
	name := strings.ToLower(voiceName)
	switch {
	case strings.Contains(name, "wavenet"):
		return "WaveNet"
	case strings.Contains(name, "neural2"):
		return "Neural2"
	case strings.Contains(name, "studio"):
		return "Studio"
	case strings.Contains(name, "chirp"):
		return "Chirp"
	default:
		return "Standard"
	}
}

// isSSML checks if the text contains SSML tags
func isSSML(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "<speak") ||
		strings.Contains(trimmed, "<prosody") ||
		strings.Contains(trimmed, "<break")
}

var gcpEncodings = map[string]texttospeechpb.AudioEncoding{
	"wav":      texttospeechpb.AudioEncoding_LINEAR16,
	"linear16": texttospeechpb.AudioEncoding_LINEAR16,
	"ogg":      texttospeechpb.AudioEncoding_OGG_OPUS,
	"ogg_opus": texttospeechpb.AudioEncoding_OGG_OPUS,
}

// getAudioEncoding maps a file format to an encoding, mp3 unless known
func getAudioEncoding(format string) texttospeechpb.AudioEncoding {
	if enc, ok := gcpEncodings[strings.ToLower(format)]; ok {
		return enc
	}
	return texttospeechpb.AudioEncoding_MP3
}

var gcpSampleRates = []int32{8000, 16000, 22050, 24000, 44100, 48000}

// getSampleRate returns 0, the voice's native rate, for unknown values
func getSampleRate(sampleRate string) int32 {
	hz, err := strconv.ParseInt(sampleRate, 10, 32)
	if err != nil || !slices.Contains(gcpSampleRates, int32(hz)) {
		return 0
	}
	return int32(hz)
}
