package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/storyspeak/storyspeak/internal/audio"
)

const (
	simulatedToneHz  = 440.0
	minSimulatedClip = 200 * time.Millisecond

	// DefaultSpeechRate is how long SimulatedSynthesizer takes per character
	DefaultSpeechRate = 60 * time.Millisecond
)

// SimulatedRecorder is a microphone that records a generated tone. It backs
// --simulate runs on machines without capture hardware.
type SimulatedRecorder struct {
	Dir    string
	Denied bool
	Now    func() time.Time
}

// RequestPermission implements audio.Recorder
func (r *SimulatedRecorder) RequestPermission(ctx context.Context) (bool, error) {
	return !r.Denied, nil
}

// CreateRecording implements audio.Recorder
func (r *SimulatedRecorder) CreateRecording(ctx context.Context, preset audio.QualityPreset) (audio.RecordingHandle, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	return &simulatedRecording{
		dir:     r.Dir,
		rate:    SampleRate(preset),
		now:     now,
		started: now(),
	}, nil
}

type simulatedRecording struct {
	dir     string
	rate    int
	now     func() time.Time
	started time.Time

	mu       sync.Mutex
	released bool
}

// MeteringLevel oscillates like speech, between syllables and pauses.
func (h *simulatedRecording) MeteringLevel() float64 {
	t := h.now().Sub(h.started).Seconds()
	return 0.45 + 0.35*math.Sin(2*math.Pi*1.5*t)
}

func (h *simulatedRecording) StopAndRelease(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return "", errors.New("recording already released")
	}
	h.released = true

	d := max(h.now().Sub(h.started), minSimulatedClip)

	if h.dir != "" {
		if err := os.MkdirAll(h.dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create recording directory: %w", err)
		}
	}
	f, err := os.CreateTemp(h.dir, "recording_*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create recording file: %w", err)
	}
	path := f.Name()
	_ = f.Close()

	if err := WriteTone(path, d, h.rate, simulatedToneHz); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	log.Debug().Str("file", path).Dur("duration", d).Msg("Simulated recording saved")
	return FileURI(path), nil
}

// SimulatedPlayer plays clips silently, reporting status as a real player would.
type SimulatedPlayer struct {
	TickInterval time.Duration
}

// CreatePlayer implements audio.Player
func (p *SimulatedPlayer) CreatePlayer(ctx context.Context, uri string, onStatus func(audio.PlaybackStatus)) (audio.PlayerHandle, error) {
	path, err := PathFromURI(uri)
	if err != nil {
		return nil, err
	}
	duration, err := WAVDuration(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load recording: %w", err)
	}

	interval := p.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &simulatedPlayback{
		interval: interval,
		onStatus: onStatus,
		clock:    playbackClock{duration: duration},
	}, nil
}

type simulatedPlayback struct {
	interval time.Duration
	onStatus func(audio.PlaybackStatus)

	mu      sync.Mutex
	clock   playbackClock
	started bool
	stopped bool
	quit    chan struct{}
	done    chan struct{}
}

func (h *simulatedPlayback) Play(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return errors.New("player already stopped")
	}
	if h.started {
		if h.clock.paused {
			h.clock.resume(time.Now())
		}
		return nil
	}
	h.started = true
	h.clock.start(time.Now())
	h.quit = make(chan struct{})
	h.done = make(chan struct{})
	go h.run()
	return nil
}

func (h *simulatedPlayback) Pause(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started && !h.stopped && !h.clock.paused {
		h.clock.pause(time.Now())
	}
	return nil
}

func (h *simulatedPlayback) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.stopped || !h.started {
		h.stopped = true
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	close(h.quit)
	done := h.done
	h.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *simulatedPlayback) Unload() error {
	return h.Stop(context.Background())
}

func (h *simulatedPlayback) run() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case now := <-ticker.C:
			h.mu.Lock()
			st := h.clock.status(now)
			finished := !h.clock.paused && st.Position >= h.clock.duration
			if finished {
				h.stopped = true
			}
			h.mu.Unlock()

			if finished {
				h.onStatus(audio.PlaybackStatus{Position: st.Duration, Duration: st.Duration, DidJustFinish: true})
				return
			}
			h.onStatus(st)
		}
	}
}

// SimulatedSynthesizer stays silent for a time proportional to the text length.
type SimulatedSynthesizer struct {
	PerRune time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func(error)
}

// Speak implements audio.Synthesizer
func (s *SimulatedSynthesizer) Speak(ctx context.Context, text string, lang audio.Language, onDone func(error)) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("no text to speak")
	}
	_ = s.Stop()

	perRune := s.PerRune
	if perRune <= 0 {
		perRune = DefaultSpeechRate
	}
	d := time.Duration(utf8.RuneCountInString(text)) * perRune

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = onDone
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timer != timer {
			s.mu.Unlock()
			return
		}
		done := s.pending
		s.timer, s.pending = nil, nil
		s.mu.Unlock()
		done(nil)
	})
	s.timer = timer
	log.Debug().Str("language", string(lang)).Dur("duration", d).Msg("Simulated speech started")
	return nil
}

// Stop implements audio.Synthesizer
func (s *SimulatedSynthesizer) Stop() error {
	s.mu.Lock()
	timer, done := s.timer, s.pending
	s.timer, s.pending = nil, nil
	s.mu.Unlock()

	if timer != nil && timer.Stop() && done != nil {
		go done(nil)
	}
	return nil
}
