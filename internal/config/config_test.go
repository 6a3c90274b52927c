package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyspeak/storyspeak/internal/audio"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-12345")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "expand ${VAR} pattern",
			input:    `{"apiKey": "${TEST_API_KEY}"}`,
			expected: `{"apiKey": "sk-test-12345"}`,
		},
		{
			name:     "missing env var returns empty",
			input:    `{"apiKey": "${NONEXISTENT_VAR}"}`,
			expected: `{"apiKey": ""}`,
		},
		{
			name:     "no variables to expand",
			input:    `{"apiKey": "literal-value"}`,
			expected: `{"apiKey": "literal-value"}`,
		},
		{
			name:     "multiple variables",
			input:    `{"key1": "${TEST_API_KEY}", "key2": "${TEST_API_KEY}"}`,
			expected: `{"key1": "sk-test-12345", "key2": "sk-test-12345"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

// newTestLoader returns a loader whose global config lives under a temp dir
func newTestLoader(t *testing.T) (*Loader, string) {
	t.Helper()
	home := t.TempDir()
	return &Loader{
		projectPath: filepath.Join(DirName, FileName),
		globalPath:  filepath.Join(home, DirName, FileName),
	}, home
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestLoader_LoadConfig(t *testing.T) {
	t.Run("load project config", func(t *testing.T) {
		t.Setenv("STORYSPEAK_TEST_KEY", "sk-project")
		loader, _ := newTestLoader(t)
		workDir := t.TempDir()
		writeConfig(t, filepath.Join(workDir, DirName, FileName), `{
			"speech": {
				"engine": "cloud",
				"provider": "openai",
				"voices": {"zh": "nova"}
			},
			"providers": {
				"openai": {"apiKey": "${STORYSPEAK_TEST_KEY}"}
			},
			"recording": {"quality": "low"}
		}`)

		config, err := loader.LoadConfig(workDir)
		require.NoError(t, err)
		require.NotNil(t, config)
		assert.Equal(t, "cloud", config.Speech.Engine)
		assert.Equal(t, "openai", config.Speech.Provider)
		assert.Equal(t, "nova", config.VoiceFor(audio.LanguageChinese))
		assert.Equal(t, "sk-project", config.Providers.OpenAI.APIKey)
		assert.Equal(t, audio.PresetLow, config.QualityPreset())
		// defaults survive for keys the file leaves out
		assert.Equal(t, 1.0, config.Speech.Speed)
		assert.Equal(t, "local", config.Story.Source)
		assert.Equal(t, audio.DefaultMeteringInterval, config.MeteringInterval())
	})

	t.Run("falls back to global config", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		writeConfig(t, loader.GlobalPath(), `{"story": {"source": "backend"}, "backend": {"url": "https://api.example.com"}}`)

		config, err := loader.LoadConfig(t.TempDir())
		require.NoError(t, err)
		require.NotNil(t, config)
		assert.Equal(t, "backend", config.Story.Source)
		assert.Equal(t, "https://api.example.com", config.Backend.URL)
	})

	t.Run("project config wins over global", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		writeConfig(t, loader.GlobalPath(), `{"speech": {"engine": "cloud", "provider": "gcp"}}`)
		workDir := t.TempDir()
		writeConfig(t, filepath.Join(workDir, DirName, FileName), `{"speech": {"engine": "system"}}`)

		config, err := loader.LoadConfig(workDir)
		require.NoError(t, err)
		assert.Equal(t, "system", config.Speech.Engine)
	})

	t.Run("no config returns nil", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		config, err := loader.LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Nil(t, config)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		workDir := t.TempDir()
		writeConfig(t, filepath.Join(workDir, DirName, FileName), `{"speech": `)

		_, err := loader.LoadConfig(workDir)
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestLoader_LoadFromPath(t *testing.T) {
	loader, _ := newTestLoader(t)
	dir := t.TempDir()

	path := filepath.Join(dir, FileName)
	writeConfig(t, path, `{"history": {"path": "/tmp/h.db"}}`)
	config, err := loader.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/h.db", config.HistoryPath())

	_, err = loader.LoadFromPath(filepath.Join(dir, "other.json"))
	assert.ErrorContains(t, err, "must be a storyspeak.json file")

	_, err = loader.LoadFromPath(dir + "/../x/" + FileName)
	assert.ErrorContains(t, err, "path traversal not allowed")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{
			name:   "default is valid",
			modify: func(c *Config) {},
		},
		{
			name:    "unknown engine",
			modify:  func(c *Config) { c.Speech.Engine = "robot" },
			wantErr: "engine must be 'system' or 'cloud'",
		},
		{
			name: "unknown provider",
			modify: func(c *Config) {
				c.Speech.Engine = "cloud"
				c.Speech.Provider = "elevenlabs"
			},
			wantErr: "unknown provider 'elevenlabs'",
		},
		{
			name:    "speed out of range",
			modify:  func(c *Config) { c.Speech.Speed = 5 },
			wantErr: "speed must be between 0.25 and 4.0",
		},
		{
			name:    "voice for unsupported language",
			modify:  func(c *Config) { c.Speech.Voices = map[string]string{"fr": "Celine"} },
			wantErr: "unsupported language 'fr'",
		},
		{
			name:    "openai story source needs key",
			modify:  func(c *Config) { c.Story.Source = "openai" },
			wantErr: "openai: apiKey is required",
		},
		{
			name:    "backend stories need url",
			modify:  func(c *Config) { c.Story.Source = "backend" },
			wantErr: "backend: url is required",
		},
		{
			name:    "bad quality",
			modify:  func(c *Config) { c.Recording.Quality = "studio" },
			wantErr: "quality must be 'high' or 'low'",
		},
		{
			name:    "negative metering interval",
			modify:  func(c *Config) { c.Recording.MeteringIntervalMs = -1 },
			wantErr: "meteringIntervalMs must not be negative",
		},
		{
			name:    "unknown story source",
			modify:  func(c *Config) { c.Story.Source = "library" },
			wantErr: "story: source must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			c := Default()
			tt.modify(c)
			errs := c.Validate()
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}

	t.Run("nil config", func(t *testing.T) {
		var c *Config
		assert.Empty(t, c.Validate())
	})
}

func TestConfig_MaskSecrets(t *testing.T) {
	c := Default()
	c.Providers.OpenAI.APIKey = "sk-1234567890"
	c.Backend.APIKey = "abc"

	masked := c.MaskSecrets()
	assert.Equal(t, "[set, 13 chars]", masked.Providers.OpenAI.APIKey)
	assert.Equal(t, "[set, 3 chars]", masked.Backend.APIKey)
	// the original is untouched
	assert.Equal(t, "sk-1234567890", c.Providers.OpenAI.APIKey)

	var nilConfig *Config
	assert.Nil(t, nilConfig.MaskSecrets())
}

func TestGenerateExampleConfig(t *testing.T) {
	example := GenerateExampleConfig()
	assert.True(t, strings.HasPrefix(example, "{"))
	assert.Contains(t, example, `"${OPENAI_API_KEY}"`)
	assert.Contains(t, example, `"engine": "cloud"`)

	// the example parses back through the loader
	t.Setenv("OPENAI_API_KEY", "sk-example")
	t.Setenv("STORYSPEAK_API_BASE_URL", "https://api.example.com")
	loader, _ := newTestLoader(t)
	path := filepath.Join(t.TempDir(), FileName)
	writeConfig(t, path, example)
	config, err := loader.LoadFromPath(path)
	require.NoError(t, err)
	assert.Empty(t, config.Validate())
	assert.Equal(t, "polly", config.Speech.Provider)
}

func TestConfig_Accessors(t *testing.T) {
	c := Default()
	assert.Equal(t, 10*time.Second, c.BackendTimeout())
	assert.Equal(t, time.Duration(0), c.TickInterval())
	assert.Equal(t, audio.PresetHigh, c.QualityPreset())
	assert.Equal(t, filepath.Join(DataDir(), "history.db"), c.HistoryPath())
	assert.Equal(t, filepath.Join(DataDir(), "recordings"), c.RecordingDir())

	c.Backend.TimeoutSeconds = 3
	c.Playback.TickIntervalMs = 50
	c.Recording.MeteringIntervalMs = 250
	c.Recording.Dir = "/data/rec"
	assert.Equal(t, 3*time.Second, c.BackendTimeout())
	assert.Equal(t, 50*time.Millisecond, c.TickInterval())
	assert.Equal(t, 250*time.Millisecond, c.MeteringInterval())
	assert.Equal(t, "/data/rec", c.RecordingDir())
}

func TestConfig_ProviderSettings(t *testing.T) {
	c := Default()
	c.Providers.Polly.Region = "ap-northeast-1"
	c.Providers.OpenAI.APIKey = "sk"
	c.Providers.OpenAI.TTSModel = "tts-1-hd"
	c.Backend.URL = "https://api.example.com"

	s := c.ProviderSettings()
	assert.Equal(t, "ap-northeast-1", s.PollyRegion)
	assert.Equal(t, "sk", s.OpenAIAPIKey)
	assert.Equal(t, "tts-1-hd", s.OpenAIModel)
	assert.Equal(t, "https://api.example.com", s.RemoteURL)
}
