package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/storyspeak/storyspeak/internal/audio"
	"github.com/storyspeak/storyspeak/internal/voice/provider"
)

const (
	// FileName is the configuration file name
	FileName = "storyspeak.json"
	// DirName is the project-local and per-user configuration directory
	DirName = ".storyspeak"
)

// Config represents the configuration file structure
type Config struct {
	Speech    SpeechConfig    `json:"speech"`
	Providers ProvidersConfig `json:"providers,omitempty"`
	Backend   BackendConfig   `json:"backend,omitempty"`
	Recording RecordingConfig `json:"recording"`
	Playback  PlaybackConfig  `json:"playback,omitempty"`
	Story     StoryConfig     `json:"story"`
	History   HistoryConfig   `json:"history,omitempty"`
}

// SpeechConfig selects how stories are read aloud
type SpeechConfig struct {
	// Engine is "system" (say / espeak-ng) or "cloud" (a TTS provider)
	Engine   string `json:"engine,omitempty"`
	Provider string `json:"provider,omitempty"`
	// Voices maps a language (zh, en, ja) to a voice name
	Voices map[string]string `json:"voices,omitempty"`
	Speed  float64           `json:"speed,omitempty"`
	Format string            `json:"format,omitempty"`
}

// ProvidersConfig holds cloud TTS provider settings
type ProvidersConfig struct {
	Polly  PollyConfig  `json:"polly,omitempty"`
	GCP    GCPConfig    `json:"gcp,omitempty"`
	OpenAI OpenAIConfig `json:"openai,omitempty"`
}

// PollyConfig configures Amazon Polly
type PollyConfig struct {
	Region     string `json:"region,omitempty"`
	Engine     string `json:"engine,omitempty"`
	SampleRate string `json:"sampleRate,omitempty"`
}

// GCPConfig configures Google Cloud Text-to-Speech
type GCPConfig struct {
	Voice string `json:"voice,omitempty"`
}

// OpenAIConfig is shared by the OpenAI TTS provider and story generator
type OpenAIConfig struct {
	APIKey    string `json:"apiKey,omitempty"`
	BaseURL   string `json:"baseURL,omitempty"`
	TTSModel  string `json:"ttsModel,omitempty"`
	ChatModel string `json:"chatModel,omitempty"`
}

// BackendConfig points at the app backend serving /chat and /tts
type BackendConfig struct {
	URL            string `json:"url,omitempty"`
	APIKey         string `json:"apiKey,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

// RecordingConfig configures the microphone
type RecordingConfig struct {
	Command            string `json:"command,omitempty"`
	Quality            string `json:"quality,omitempty"`
	Dir                string `json:"dir,omitempty"`
	MeteringIntervalMs int    `json:"meteringIntervalMs,omitempty"`
	Disabled           bool   `json:"disabled,omitempty"`
}

// PlaybackConfig configures playback of recordings and synthesized speech
type PlaybackConfig struct {
	Command        string `json:"command,omitempty"`
	TickIntervalMs int    `json:"tickIntervalMs,omitempty"`
}

// StoryConfig selects where practice stories come from
type StoryConfig struct {
	// Source is "backend", "openai" or "local"
	Source      string `json:"source,omitempty"`
	CatalogPath string `json:"catalogPath,omitempty"`
}

// HistoryConfig locates the practice history database
type HistoryConfig struct {
	Path string `json:"path,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Speech: SpeechConfig{
			Engine: "system",
			Speed:  1.0,
			Format: "mp3",
		},
		Recording: RecordingConfig{
			Quality:            string(audio.PresetHigh),
			MeteringIntervalMs: int(audio.DefaultMeteringInterval / time.Millisecond),
		},
		Story: StoryConfig{
			Source: "local",
		},
	}
}

// Loader handles loading configuration from files
type Loader struct {
	projectPath string
	globalPath  string
}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	homeDir, _ := os.UserHomeDir()
	return &Loader{
		projectPath: filepath.Join(DirName, FileName),
		globalPath:  filepath.Join(homeDir, DirName, FileName),
	}
}

// LoadConfig loads configuration with priority:
// 1. Project-local config (.storyspeak/storyspeak.json)
// 2. Global config (~/.storyspeak/storyspeak.json)
// Returns nil if no config file found
func (l *Loader) LoadConfig(workDir string) (*Config, error) {
	projectConfigPath := filepath.Join(workDir, l.projectPath)
	config, err := l.loadFromFile(projectConfigPath)
	if err == nil {
		log.Debug().Str("path", projectConfigPath).Msg("Loaded project config")
		return config, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	config, err = l.loadFromFile(l.globalPath)
	if err == nil {
		log.Debug().Str("path", l.globalPath).Msg("Loaded global config")
		return config, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	log.Debug().Msg("No config file found")
	return nil, nil
}

// LoadFromPath loads configuration from a specific path
func (l *Loader) LoadFromPath(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, err
	}
	return l.loadFromFile(path)
}

// GlobalPath returns the per-user configuration file path
func (l *Loader) GlobalPath() string {
	return l.globalPath
}

// validateConfigPath checks that the config path is safe to use
func validateConfigPath(path string) error {
	// checked before cleaning so hidden traversal is caught too
	if strings.Contains(path, "..") {
		return fmt.Errorf("invalid config path: path traversal not allowed")
	}

	if filepath.Base(filepath.Clean(path)) != FileName {
		return fmt.Errorf("invalid config path: must be a %s file", FileName)
	}

	return nil
}

func (l *Loader) loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := expandEnvVars(string(data))

	config := Default()
	if err := json.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	checkFilePermissions(path)

	return config, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := match[2 : len(match)-1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Don't log variable names for security reasons
		log.Debug().Msg("Referenced environment variable not set in config")
		return ""
	})
}

func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		log.Warn().
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Config file may contain secrets but has permissive permissions. Consider: chmod 600")
	}
}

// Validate validates the configuration
func (c *Config) Validate() []string {
	var errors []string

	if c == nil {
		return errors
	}

	switch c.Speech.Engine {
	case "", "system":
	case "cloud":
		if !slices.Contains(provider.NewFactory(provider.Settings{}).ListProviders(), c.Speech.Provider) {
			errors = append(errors, fmt.Sprintf("speech: unknown provider '%s'", c.Speech.Provider))
		}
	default:
		errors = append(errors, fmt.Sprintf("speech: engine must be 'system' or 'cloud', got '%s'", c.Speech.Engine))
	}

	if c.Speech.Speed != 0 && (c.Speech.Speed < 0.25 || c.Speech.Speed > 4.0) {
		errors = append(errors, "speech: speed must be between 0.25 and 4.0")
	}

	for lang := range c.Speech.Voices {
		if _, err := audio.ParseLanguage(lang); err != nil {
			errors = append(errors, fmt.Sprintf("speech: voice configured for unsupported language '%s'", lang))
		}
	}

	if c.Speech.Provider == "openai" || c.Story.Source == "openai" {
		if c.Providers.OpenAI.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
			errors = append(errors, "openai: apiKey is required (use ${OPENAI_API_KEY} for env var)")
		}
	}

	if c.Speech.Provider == "remote" || c.Story.Source == "backend" {
		if c.Backend.URL == "" {
			errors = append(errors, "backend: url is required for the remote provider and backend stories")
		}
	}

	switch c.Recording.Quality {
	case "", string(audio.PresetHigh), string(audio.PresetLow):
	default:
		errors = append(errors, fmt.Sprintf("recording: quality must be 'high' or 'low', got '%s'", c.Recording.Quality))
	}

	if c.Recording.MeteringIntervalMs < 0 {
		errors = append(errors, "recording: meteringIntervalMs must not be negative")
	}

	switch c.Story.Source {
	case "", "local", "backend", "openai":
	default:
		errors = append(errors, fmt.Sprintf("story: source must be 'local', 'backend' or 'openai', got '%s'", c.Story.Source))
	}

	return errors
}

// MaskSecrets masks sensitive values in config for display.
// Only shows that a key is present, not its contents.
func (c *Config) MaskSecrets() *Config {
	if c == nil {
		return nil
	}

	masked := *c
	if c.Providers.OpenAI.APIKey != "" {
		masked.Providers.OpenAI.APIKey = fmt.Sprintf("[set, %d chars]", len(c.Providers.OpenAI.APIKey))
	}
	if c.Backend.APIKey != "" {
		masked.Backend.APIKey = fmt.Sprintf("[set, %d chars]", len(c.Backend.APIKey))
	}
	return &masked
}

// GenerateExampleConfig generates an example configuration
func GenerateExampleConfig() string {
	example := Config{
		Speech: SpeechConfig{
			Engine:   "cloud",
			Provider: "polly",
			Voices: map[string]string{
				"zh": "Zhiyu",
				"en": "Joanna",
				"ja": "Kazuha",
			},
			Speed:  1.0,
			Format: "mp3",
		},
		Providers: ProvidersConfig{
			Polly: PollyConfig{
				Region: "us-east-1",
				Engine: "neural",
			},
			GCP: GCPConfig{},
			OpenAI: OpenAIConfig{
				APIKey:    "${OPENAI_API_KEY}",
				TTSModel:  "tts-1",
				ChatModel: "gpt-4o-mini",
			},
		},
		Backend: BackendConfig{
			URL:            "${STORYSPEAK_API_BASE_URL}",
			TimeoutSeconds: 10,
		},
		Recording: RecordingConfig{
			Quality:            string(audio.PresetHigh),
			MeteringIntervalMs: 100,
		},
		Story: StoryConfig{
			Source: "backend",
		},
	}

	data, _ := json.MarshalIndent(example, "", "  ")
	return string(data)
}

// VoiceFor returns the configured voice for a language, if any
func (c *Config) VoiceFor(lang audio.Language) string {
	return c.Speech.Voices[string(lang)]
}

// QualityPreset returns the recording preset
func (c *Config) QualityPreset() audio.QualityPreset {
	if c.Recording.Quality == string(audio.PresetLow) {
		return audio.PresetLow
	}
	return audio.PresetHigh
}

// MeteringInterval returns the waveform sampling period
func (c *Config) MeteringInterval() time.Duration {
	if c.Recording.MeteringIntervalMs <= 0 {
		return audio.DefaultMeteringInterval
	}
	return time.Duration(c.Recording.MeteringIntervalMs) * time.Millisecond
}

// TickInterval returns the playback status period
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Playback.TickIntervalMs) * time.Millisecond
}

// BackendTimeout returns the HTTP timeout for backend calls
func (c *Config) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// ProviderSettings converts the provider sections for the provider factory
func (c *Config) ProviderSettings() provider.Settings {
	return provider.Settings{
		PollyRegion:   c.Providers.Polly.Region,
		GCPVoice:      c.Providers.GCP.Voice,
		OpenAIAPIKey:  c.Providers.OpenAI.APIKey,
		OpenAIBaseURL: c.Providers.OpenAI.BaseURL,
		OpenAIModel:   c.Providers.OpenAI.TTSModel,
		RemoteURL:     c.Backend.URL,
		RemoteAPIKey:  c.Backend.APIKey,
	}
}

// DataDir returns the per-user data directory
func DataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(homeDir, DirName)
}

// HistoryPath returns the history database path
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(DataDir(), "history.db")
}

// RecordingDir returns where recordings are written
func (c *Config) RecordingDir() string {
	if c.Recording.Dir != "" {
		return c.Recording.Dir
	}
	return filepath.Join(DataDir(), "recordings")
}
