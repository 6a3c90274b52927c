package voice

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storyspeak/storyspeak/internal/audio"
	"github.com/storyspeak/storyspeak/internal/audio/device"
	"github.com/storyspeak/storyspeak/internal/config"
	"github.com/storyspeak/storyspeak/internal/voice/provider"
)

// MockProvider is a mock TTS provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) ListVoices(ctx context.Context, locale string) ([]provider.Voice, error) {
	args := m.Called(ctx, locale)
	return args.Get(0).([]provider.Voice), args.Error(1)
}

func (m *MockProvider) Synthesize(ctx context.Context, text string, options provider.SynthesizeOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, text, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return io.NopCloser(strings.NewReader(args.String(0))), args.Error(1)
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

// recordingPlayer captures loaded files and lets the test finish playback
type recordingPlayer struct {
	mu       sync.Mutex
	contents []string
	onStatus func(audio.PlaybackStatus)
	unloaded chan struct{}
	loaded   chan struct{}
	playErr  error
}

func newRecordingPlayer() *recordingPlayer {
	return &recordingPlayer{unloaded: make(chan struct{}, 1), loaded: make(chan struct{}, 1)}
}

func (p *recordingPlayer) CreatePlayer(ctx context.Context, uri string, onStatus func(audio.PlaybackStatus)) (audio.PlayerHandle, error) {
	path, err := device.PathFromURI(uri)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.contents = append(p.contents, string(data))
	p.onStatus = onStatus
	p.mu.Unlock()
	return &recordingHandle{player: p}, nil
}

func (p *recordingPlayer) finish() {
	p.mu.Lock()
	fn := p.onStatus
	p.mu.Unlock()
	fn(audio.PlaybackStatus{DidJustFinish: true})
}

type recordingHandle struct {
	player *recordingPlayer
}

func (h *recordingHandle) Play(ctx context.Context) error {
	h.player.loaded <- struct{}{}
	return h.player.playErr
}
func (h *recordingHandle) Pause(ctx context.Context) error { return nil }
func (h *recordingHandle) Stop(ctx context.Context) error  { return nil }
func (h *recordingHandle) Unload() error {
	h.player.unloaded <- struct{}{}
	return nil
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("speech did not finish")
		return nil
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestCloudEngine_Speak(t *testing.T) {
	p := &MockProvider{}
	p.On("Synthesize", mock.Anything, "你好 世界", provider.SynthesizeOptions{
		Voice:  "Zhiyu",
		Locale: "zh-CN",
		Speed:  0.9,
		Format: "mp3",
	}).Return("audio-bytes", nil)

	player := newRecordingPlayer()
	e := NewCloudEngine(p, player, CloudConfig{
		Voices: map[audio.Language]string{audio.LanguageChinese: "Zhiyu"},
		Speed:  0.9,
	})
	assert.Equal(t, "mock", e.Provider())

	done := make(chan error, 1)
	require.NoError(t, e.Speak(context.Background(), "你好\n世界", audio.LanguageChinese, func(err error) { done <- err }))

	waitSignal(t, player.loaded)
	player.finish()
	require.NoError(t, waitDone(t, done))
	waitSignal(t, player.unloaded)

	player.mu.Lock()
	assert.Equal(t, []string{"audio-bytes"}, player.contents)
	player.mu.Unlock()
	p.AssertExpectations(t)
}

func TestCloudEngine_Stop(t *testing.T) {
	p := &MockProvider{}
	p.On("Synthesize", mock.Anything, "hello", mock.Anything).Return("audio", nil)

	player := newRecordingPlayer()
	e := NewCloudEngine(p, player, CloudConfig{})

	done := make(chan error, 1)
	require.NoError(t, e.Speak(context.Background(), "hello", audio.LanguageEnglish, func(err error) { done <- err }))
	waitSignal(t, player.loaded)

	require.NoError(t, e.Stop())
	// cancellation is reported as a normal end of speech
	assert.NoError(t, waitDone(t, done))
	waitSignal(t, player.unloaded)

	// stopping twice is not an error
	assert.NoError(t, e.Stop())
}

func TestCloudEngine_Errors(t *testing.T) {
	t.Run("synthesis failure", func(t *testing.T) {
		p := &MockProvider{}
		p.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))

		e := NewCloudEngine(p, newRecordingPlayer(), CloudConfig{})
		done := make(chan error, 1)
		require.NoError(t, e.Speak(context.Background(), "hello", audio.LanguageEnglish, func(err error) { done <- err }))
		err := waitDone(t, done)
		assert.ErrorContains(t, err, "synthesis failed")
		assert.ErrorContains(t, err, "quota exceeded")
	})

	t.Run("play failure", func(t *testing.T) {
		p := &MockProvider{}
		p.On("Synthesize", mock.Anything, mock.Anything, mock.Anything).Return("audio", nil)

		player := newRecordingPlayer()
		player.playErr = errors.New("no audio player found")
		e := NewCloudEngine(p, player, CloudConfig{})
		done := make(chan error, 1)
		require.NoError(t, e.Speak(context.Background(), "hello", audio.LanguageEnglish, func(err error) { done <- err }))
		assert.ErrorContains(t, waitDone(t, done), "failed to play speech audio")
	})

	t.Run("empty text", func(t *testing.T) {
		e := NewCloudEngine(&MockProvider{}, newRecordingPlayer(), CloudConfig{})
		assert.Error(t, e.Speak(context.Background(), "", audio.LanguageEnglish, func(error) {}))
	})
}

func TestCloudEngine_SpeakRawPCM(t *testing.T) {
	raw := strings.Repeat("\x10\x00\xf0\xff", 400)

	p := &MockProvider{}
	p.On("Synthesize", mock.Anything, "hello", mock.Anything).Return(raw, nil)

	player := newRecordingPlayer()
	e := NewCloudEngine(p, player, CloudConfig{Format: "pcm", SampleRate: "16000"})

	done := make(chan error, 1)
	require.NoError(t, e.Speak(context.Background(), "hello", audio.LanguageEnglish, func(err error) { done <- err }))
	waitSignal(t, player.loaded)
	player.finish()
	require.NoError(t, waitDone(t, done))

	player.mu.Lock()
	defer player.mu.Unlock()
	require.Len(t, player.contents, 1)
	played := player.contents[0]
	assert.True(t, strings.HasPrefix(played, "RIFF"), "raw PCM is played as a WAV file")
	assert.Contains(t, played[:16], "WAVE")
	assert.True(t, strings.HasSuffix(played, raw))
}

// openAIMockProvider reports the OpenAI provider name
type openAIMockProvider struct {
	MockProvider
}

func (m *openAIMockProvider) Name() string { return "openai" }

func TestCloudEngine_PCMSampleRate(t *testing.T) {
	tests := []struct {
		name       string
		provider   provider.Provider
		sampleRate string
		expected   int
	}{
		{"configured", &MockProvider{}, "8000", 8000},
		{"polly default", &MockProvider{}, "", 16000},
		{"openai default", &openAIMockProvider{}, "", 24000},
		{"invalid falls back", &MockProvider{}, "fast", 16000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewCloudEngine(tt.provider, newRecordingPlayer(), CloudConfig{Format: "pcm", SampleRate: tt.sampleRate})
			assert.Equal(t, tt.expected, e.pcmSampleRate())
		})
	}
}

func TestExtensionForFormat(t *testing.T) {
	tests := []struct {
		format   string
		expected string
	}{
		{"mp3", "mp3"},
		{"wav", "wav"},
		{"pcm", "wav"},
		{"ogg", "ogg"},
		{"flac", "flac"},
		{"aac", "aac"},
		{"unknown", "mp3"},
		{"", "mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			assert.Equal(t, tt.expected, extensionForFormat(tt.format))
		})
	}
}

func TestNewSynthesizer(t *testing.T) {
	t.Run("unknown engine", func(t *testing.T) {
		cfg := config.Default()
		cfg.Speech.Engine = "robot"
		_, err := NewSynthesizer(context.Background(), cfg, newRecordingPlayer())
		assert.EqualError(t, err, "unknown speech engine: robot")
	})

	t.Run("cloud with unknown provider", func(t *testing.T) {
		cfg := config.Default()
		cfg.Speech.Engine = "cloud"
		cfg.Speech.Provider = "elevenlabs"
		_, err := NewSynthesizer(context.Background(), cfg, newRecordingPlayer())
		assert.ErrorContains(t, err, "unknown provider: elevenlabs")
	})

	t.Run("cloud with remote provider", func(t *testing.T) {
		cfg := config.Default()
		cfg.Speech.Engine = "cloud"
		cfg.Speech.Provider = "remote"
		cfg.Backend.URL = "https://api.example.com"
		synth, err := NewSynthesizer(context.Background(), cfg, newRecordingPlayer())
		require.NoError(t, err)
		require.IsType(t, &CloudEngine{}, synth)
		assert.Equal(t, "remote", synth.(*CloudEngine).Provider())
	})
}

func TestLanguageVoices(t *testing.T) {
	voices := languageVoices(map[string]string{"zh-CN": "Zhiyu", "en": "Joanna", "fr": "Celine"})
	assert.Equal(t, map[audio.Language]string{
		audio.LanguageChinese: "Zhiyu",
		audio.LanguageEnglish: "Joanna",
	}, voices)
}

func TestListVoices(t *testing.T) {
	factory := provider.NewFactory(provider.Settings{RemoteURL: "http://127.0.0.1:1"})

	_, err := ListVoices(context.Background(), factory, "openai-missing", "")
	assert.ErrorContains(t, err, "unknown provider")

	// a named provider that cannot be reached is an error
	_, err = ListVoices(context.Background(), factory, "remote", "en-US")
	assert.ErrorContains(t, err, "provider remote is not available")
}
