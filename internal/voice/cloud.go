package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/storyspeak/storyspeak/internal/audio"
	"github.com/storyspeak/storyspeak/internal/audio/device"
	"github.com/storyspeak/storyspeak/internal/voice/provider"
)

// Raw PCM sample rates used when the config names none. OpenAI streams pcm at
// 24 kHz, Polly defaults to 16 kHz.
const (
	defaultPCMRate     = 16000
	openAIPCMRate      = 24000
	openAIProviderName = "openai"
)

// CloudConfig configures a CloudEngine
type CloudConfig struct {
	// Voices overrides the provider's default voice per language.
	Voices map[audio.Language]string
	Speed  float64
	Format string
	Engine string
	// SampleRate is passed to providers that accept one, e.g. "22050".
	SampleRate string
}

// CloudEngine synthesizes speech with a TTS provider and plays the result
type CloudEngine struct {
	provider provider.Provider
	player   audio.Player
	config   CloudConfig

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCloudEngine creates a cloud speech engine
func NewCloudEngine(p provider.Provider, player audio.Player, config CloudConfig) *CloudEngine {
	if config.Format == "" {
		config.Format = "mp3"
	}
	return &CloudEngine{provider: p, player: player, config: config}
}

// Provider returns the provider name
func (e *CloudEngine) Provider() string {
	return e.provider.Name()
}

// Speak implements audio.Synthesizer. Synthesis and playback run in the
// background; onDone fires after playback finishes.
func (e *CloudEngine) Speak(ctx context.Context, text string, lang audio.Language, onDone func(error)) error {
	text = normalizeText(text)
	if text == "" {
		return errors.New("text cannot be empty")
	}

	_ = e.Stop()

	speechCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	go func() {
		defer cancel()
		err := e.speak(speechCtx, text, lang)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		onDone(err)
	}()

	return nil
}

// Stop implements audio.Synthesizer
func (e *CloudEngine) Stop() error {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func (e *CloudEngine) speak(ctx context.Context, text string, lang audio.Language) error {
	path, err := e.synthesizeToFile(ctx, text, lang)
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(path)
	}()

	finished := make(chan struct{})
	var once sync.Once
	h, err := e.player.CreatePlayer(ctx, device.FileURI(path), func(st audio.PlaybackStatus) {
		if st.DidJustFinish {
			once.Do(func() { close(finished) })
		}
	})
	if err != nil {
		return fmt.Errorf("failed to load speech audio: %w", err)
	}
	defer func() {
		if err := h.Unload(); err != nil {
			log.Debug().Err(err).Msg("Failed to unload speech audio")
		}
	}()

	if err := h.Play(ctx); err != nil {
		return fmt.Errorf("failed to play speech audio: %w", err)
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// synthesizeToFile writes the provider's audio to a temp file
func (e *CloudEngine) synthesizeToFile(ctx context.Context, text string, lang audio.Language) (string, error) {
	options := provider.SynthesizeOptions{
		Voice:      e.config.Voices[lang],
		Locale:     lang.Locale(),
		Speed:      e.config.Speed,
		Format:     e.config.Format,
		Engine:     e.config.Engine,
		SampleRate: e.config.SampleRate,
	}

	stream, err := e.provider.Synthesize(ctx, text, options)
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("speech_%s_*.%s", e.provider.Name(), extensionForFormat(e.config.Format)))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = tmpFile.Close()
	}()

	if strings.EqualFold(e.config.Format, "pcm") {
		// raw PCM has no header, players need it wrapped
		err = device.EncodePCM(tmpFile, stream, e.pcmSampleRate())
	} else {
		_, err = io.Copy(tmpFile, stream)
	}
	if err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to save audio: %w", err)
	}

	log.Debug().
		Str("provider", e.provider.Name()).
		Str("file", tmpFile.Name()).
		Str("language", string(lang)).
		Msg("Audio synthesis completed")

	return tmpFile.Name(), nil
}

func (e *CloudEngine) pcmSampleRate() int {
	if rate, err := strconv.Atoi(e.config.SampleRate); err == nil && rate > 0 {
		return rate
	}
	if e.provider.Name() == openAIProviderName {
		return openAIPCMRate
	}
	return defaultPCMRate
}

func extensionForFormat(format string) string {
	switch format {
	case "ogg", "opus":
		return "ogg"
	case "wav", "pcm":
		return "wav"
	case "flac":
		return "flac"
	case "aac":
		return "aac"
	default:
		return "mp3"
	}
}
