package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/storyspeak/storyspeak/internal/audio"
)

// DefaultTickInterval is how often players report playback status.
const DefaultTickInterval = 100 * time.Millisecond

// PlayerConfig configures a CommandPlayer
type PlayerConfig struct {
	// Command is the playback program; empty autodetects.
	Command string
	// TickInterval is the status reporting period.
	TickInterval time.Duration
}

// CommandPlayer plays recordings through an external player program.
type CommandPlayer struct {
	config PlayerConfig
}

// NewCommandPlayer creates a player
func NewCommandPlayer(config PlayerConfig) *CommandPlayer {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	return &CommandPlayer{config: config}
}

// CreatePlayer implements audio.Player
func (p *CommandPlayer) CreatePlayer(ctx context.Context, uri string, onStatus func(audio.PlaybackStatus)) (audio.PlayerHandle, error) {
	path, err := PathFromURI(uri)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to load recording: %w", err)
	}

	name := detectCommand(p.config.Command, playbackCommands)
	if name == "" {
		return nil, fmt.Errorf("no audio player found (tried %s)", strings.Join(playbackCommands, ", "))
	}

	duration, err := WAVDuration(path)
	if err != nil {
		log.Debug().Err(err).Str("file", path).Msg("Unknown clip duration")
	}

	return &commandPlayback{
		name:     name,
		path:     path,
		interval: p.config.TickInterval,
		onStatus: onStatus,
		clock:    playbackClock{duration: duration},
	}, nil
}

type commandPlayback struct {
	name     string
	path     string
	interval time.Duration
	onStatus func(audio.PlaybackStatus)

	mu      sync.Mutex
	cmd     *exec.Cmd
	clock   playbackClock
	stopped bool
	exited  chan struct{}
	quit    chan struct{}
}

func (h *commandPlayback) Play(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return errors.New("player already stopped")
	}
	if h.cmd != nil {
		if !h.clock.paused {
			return nil
		}
		if err := resumeProcess(h.cmd.Process); err != nil {
			return fmt.Errorf("failed to resume %s: %w", h.name, err)
		}
		h.clock.resume(time.Now())
		return nil
	}

	cmd := exec.Command(h.name, playbackArgs(h.name, h.path)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to play audio: %w", err)
	}
	h.cmd = cmd
	h.exited = make(chan struct{})
	h.quit = make(chan struct{})
	h.clock.start(time.Now())

	go h.wait()
	go h.tick()

	log.Debug().Str("command", h.name).Str("file", h.path).Msg("Playback process started")
	return nil
}

func (h *commandPlayback) Pause(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd == nil || h.stopped || h.clock.paused {
		return nil
	}
	if err := suspendProcess(h.cmd.Process); err != nil {
		return fmt.Errorf("failed to pause %s: %w", h.name, err)
	}
	h.clock.pause(time.Now())
	return nil
}

func (h *commandPlayback) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.stopped || h.cmd == nil {
		h.stopped = true
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	close(h.quit)
	err := h.cmd.Process.Kill()
	exited := h.exited
	h.mu.Unlock()

	select {
	case <-exited:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop %s: %w", h.name, err)
	}
	return nil
}

func (h *commandPlayback) Unload() error {
	return h.Stop(context.Background())
}

// wait reaps the player process and reports natural completion
func (h *commandPlayback) wait() {
	err := h.cmd.Wait()
	close(h.exited)

	h.mu.Lock()
	stopped := h.stopped
	h.stopped = true
	duration := h.clock.duration
	if !stopped {
		close(h.quit)
	}
	h.mu.Unlock()

	if stopped {
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("command", h.name).Msg("Player exited with error")
	}
	h.onStatus(audio.PlaybackStatus{Position: duration, Duration: duration, DidJustFinish: true})
}

func (h *commandPlayback) tick() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case now := <-ticker.C:
			h.mu.Lock()
			st := h.clock.status(now)
			h.mu.Unlock()
			h.onStatus(st)
		}
	}
}

// playbackClock derives position from wall-clock time excluding paused spans.
type playbackClock struct {
	duration  time.Duration
	elapsed   time.Duration
	resumedAt time.Time
	paused    bool
}

func (c *playbackClock) start(now time.Time) {
	c.elapsed = 0
	c.resumedAt = now
	c.paused = false
}

func (c *playbackClock) pause(now time.Time) {
	c.elapsed += now.Sub(c.resumedAt)
	c.paused = true
}

func (c *playbackClock) resume(now time.Time) {
	c.resumedAt = now
	c.paused = false
}

func (c *playbackClock) position(now time.Time) time.Duration {
	pos := c.elapsed
	if !c.paused {
		pos += now.Sub(c.resumedAt)
	}
	if c.duration > 0 && pos > c.duration {
		pos = c.duration
	}
	return pos
}

func (c *playbackClock) status(now time.Time) audio.PlaybackStatus {
	return audio.PlaybackStatus{
		Position:  c.position(now),
		Duration:  c.duration,
		IsPlaying: !c.paused,
	}
}
