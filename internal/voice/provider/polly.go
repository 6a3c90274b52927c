package provider

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PollyClient interface defines the methods we need from the Polly client
type PollyClient interface {
	DescribeVoices(ctx context.Context, params *polly.DescribeVoicesInput, optFns ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error)
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider implements the Provider interface for Amazon Polly
type PollyProvider struct {
	client PollyClient
	region string
}

// NewPollyProvider creates a new Amazon Polly TTS provider
func NewPollyProvider(ctx context.Context, region string) (*PollyProvider, error) {
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewPollyProviderWithClient(polly.NewFromConfig(cfg), region), nil
}

// NewPollyProviderWithClient wraps an existing client
func NewPollyProviderWithClient(client PollyClient, region string) *PollyProvider {
	return &PollyProvider{client: client, region: region}
}

// Name returns the provider name
func (p *PollyProvider) Name() string {
	return "polly"
}

// ListVoices returns available Amazon Polly voices
func (p *PollyProvider) ListVoices(ctx context.Context, locale string) ([]Voice, error) {
	input := &polly.DescribeVoicesInput{}
	if locale != "" {
		input.LanguageCode = pollyLanguageCode(locale)
	}

	result, err := p.client.DescribeVoices(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list Polly voices: %w", err)
	}

	title := cases.Title(language.English)
	voices := make([]Voice, 0, len(result.Voices))
	for _, v := range result.Voices {
		voice := Voice{
			ID:       string(v.Id),
			Name:     aws.ToString(v.Name),
			Language: string(v.LanguageCode),
			Description: fmt.Sprintf("%s voice, %s engine supported",
				title.String(string(v.Gender)),
				formatSupportedEngines(v.SupportedEngines)),
		}

		switch v.Gender {
		case types.GenderFemale:
			voice.Gender = "female"
		case types.GenderMale:
			voice.Gender = "male"
		}

		voices = append(voices, voice)
	}

	return voices, nil
}

var pollyFormats = map[string]types.OutputFormat{
	"mp3": types.OutputFormatMp3,
	"ogg": types.OutputFormatOggVorbis,
	"pcm": types.OutputFormatPcm,
}

var pollyEngines = map[string]types.Engine{
	"standard":   types.EngineStandard,
	"neural":     types.EngineNeural,
	"long-form":  types.EngineLongForm,
	"generative": types.EngineGenerative,
}

// pollySampleRates are the rates Polly accepts for mp3 and ogg output
var pollySampleRates = []string{"8000", "16000", "22050", "24000"}

// Synthesize reads text with the voice for options.Locale unless options.Voice is set
func (p *PollyProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) (io.ReadCloser, error) {
	input, err := pollyRequest(text, options)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("voice_id", string(input.VoiceId)).
		Str("locale", options.Locale).
		Str("engine", string(input.Engine)).
		Str("text_type", string(input.TextType)).
		Msg("Requesting Polly synthesis")

	result, err := p.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	return result.AudioStream, nil
}

func pollyRequest(text string, options SynthesizeOptions) (*polly.SynthesizeSpeechInput, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	format := strings.ToLower(options.Format)
	if format == "" {
		format = "mp3"
	}
	outputFormat, ok := pollyFormats[format]
	if !ok {
		return nil, fmt.Errorf("unsupported audio format: %s", options.Format)
	}

	engine := types.EngineNeural
	if options.Engine != "" {
		if e, ok := pollyEngines[strings.ToLower(options.Engine)]; ok {
			engine = e
		} else {
			log.Warn().Str("engine", options.Engine).Msg("Unknown Polly engine, using neural")
		}
	}

	voiceID := options.Voice
	if voiceID == "" {
		voiceID = DefaultVoice("polly", options.Locale)
	}

	input := &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		VoiceId:      types.VoiceId(voiceID),
		OutputFormat: outputFormat,
		Engine:       engine,
		TextType:     types.TextTypeText,
	}
	if options.Locale != "" {
		input.LanguageCode = pollyLanguageCode(options.Locale)
	}
	if options.SampleRate != "" {
		if slices.Contains(pollySampleRates, options.SampleRate) {
			input.SampleRate = aws.String(options.SampleRate)
		} else {
			log.Warn().Str("sample_rate", options.SampleRate).Msg("Unsupported Polly sample rate, using default")
		}
	}

	// Polly has no rate parameter; slower or faster reading needs SSML prosody
	switch speed := clampSpeed(options.Speed); {
	case isSSML(text):
		input.TextType = types.TextTypeSsml
	case speed != 1.0:
		input.TextType = types.TextTypeSsml
		input.Text = aws.String(prosodySSML(text, speed))
	}
	return input, nil
}

// IsAvailable checks if Amazon Polly provider is available
func (p *PollyProvider) IsAvailable(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.client.DescribeVoices(checkCtx, &polly.DescribeVoicesInput{})
	return err == nil
}

// pollyLanguageCode maps practice locales to Polly language codes
func pollyLanguageCode(locale string) types.LanguageCode {
	if locale == "zh-CN" {
		return types.LanguageCodeCmnCn
	}
	return types.LanguageCode(locale)
}

func prosodySSML(text string, speed float64) string {
	var b strings.Builder
	b.WriteString(`<speak><prosody rate="`)
	fmt.Fprintf(&b, "%d%%", int(speed*100))
	b.WriteString(`">`)
	b.WriteString(escapeXML(text))
	b.WriteString(`</prosody></speak>`)
	return b.String()
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// formatSupportedEngines lists engine names for voice descriptions
func formatSupportedEngines(engines []types.Engine) string {
	if len(engines) == 0 {
		return "unknown"
	}
	names := make([]string, 0, len(engines))
	for _, e := range engines {
		names = append(names, string(e))
	}
	return strings.Join(names, ", ")
}
