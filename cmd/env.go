package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/storyspeak/storyspeak/internal/audio"
	"github.com/storyspeak/storyspeak/internal/audio/device"
	"github.com/storyspeak/storyspeak/internal/config"
	"github.com/storyspeak/storyspeak/internal/history"
	"github.com/storyspeak/storyspeak/internal/story"
	"github.com/storyspeak/storyspeak/internal/voice"
)

// loadConfig loads --config, the project config or the global config, falling
// back to the defaults when no file exists
func loadConfig(c *cli.Command) (*config.Config, error) {
	loader := config.NewLoader()

	if configPath := c.String("config"); configPath != "" {
		cfg, err := loader.LoadFromPath(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
		}
		return cfg, nil
	}

	workDir, _ := os.Getwd()
	cfg, err := loader.LoadConfig(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg == nil {
		return config.Default(), nil
	}

	for _, problem := range cfg.Validate() {
		log.Warn().Str("problem", problem).Msg("Configuration problem")
	}
	return cfg, nil
}

// session is an audio controller plus a signal raised whenever it settles in idle
type session struct {
	*audio.Controller
	idle chan struct{}
}

func newSession(synth audio.Synthesizer, rec audio.Recorder, player audio.Player, opts ...audio.Option) *session {
	s := &session{idle: make(chan struct{}, 1)}
	opts = append(opts, audio.WithStateListener(s.onState))
	s.Controller = audio.NewController(synth, rec, player, opts...)
	return s
}

func (s *session) onState(st audio.State) {
	if st.Mode != audio.ModeIdle {
		return
	}
	select {
	case s.idle <- struct{}{}:
	default:
	}
}

// waitIdle blocks until the controller has returned to idle
func (s *session) waitIdle(ctx context.Context) error {
	for s.State().Mode != audio.ModeIdle {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.idle:
		}
	}
	return nil
}

// newController builds the audio session on the configured devices, or on
// simulated ones when --simulate is set
func newController(ctx context.Context, c *cli.Command, cfg *config.Config) (*session, error) {
	var (
		rec    audio.Recorder
		player audio.Player
		synth  audio.Synthesizer
	)

	if c.Bool("simulate") {
		log.Debug().Msg("Using simulated audio devices")
		rec = &device.SimulatedRecorder{Dir: cfg.RecordingDir()}
		player = &device.SimulatedPlayer{TickInterval: cfg.TickInterval()}
		synth = &device.SimulatedSynthesizer{}
	} else {
		rec = device.NewCommandRecorder(device.RecorderConfig{
			Command:  cfg.Recording.Command,
			Dir:      cfg.RecordingDir(),
			Disabled: cfg.Recording.Disabled,
		})
		player = device.NewCommandPlayer(device.PlayerConfig{
			Command:      cfg.Playback.Command,
			TickInterval: cfg.TickInterval(),
		})
		var err error
		synth, err = voice.NewSynthesizer(ctx, cfg, player)
		if err != nil {
			return nil, fmt.Errorf("failed to create speech engine: %w", err)
		}
	}

	return newSession(synth, rec, player,
		audio.WithQualityPreset(cfg.QualityPreset()),
		audio.WithMeteringInterval(cfg.MeteringInterval()),
	), nil
}

// newGenerator returns the configured story generator backed by the catalog
func newGenerator(cfg *config.Config) (story.Generator, *story.Catalog, error) {
	catalog, err := story.LoadConfiguredCatalog(cfg)
	if err != nil {
		return nil, nil, err
	}
	gen, err := story.NewGenerator(cfg, catalog)
	if err != nil {
		return nil, nil, err
	}
	return gen, catalog, nil
}

// pickStory returns the catalog story with id, or a generated one when id is empty
func pickStory(ctx context.Context, cfg *config.Config, id string) (story.Story, error) {
	gen, catalog, err := newGenerator(cfg)
	if err != nil {
		return story.Story{}, err
	}
	if id != "" {
		s, ok := catalog.Get(id)
		if !ok {
			return story.Story{}, fmt.Errorf("story not found: %s", id)
		}
		return s, nil
	}
	return gen.Generate(ctx)
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}
