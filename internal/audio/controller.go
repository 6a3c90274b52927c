package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMeteringInterval is the waveform sampling cadence while recording.
const DefaultMeteringInterval = 100 * time.Millisecond

// Controller owns the single audio session shared by speech synthesis,
// microphone recording and playback of recordings.
//
// All state lives on one event-loop goroutine. Operations are submitted to the
// loop and block until it has executed them; device callbacks are queued to the
// same loop and dropped when they belong to a session that is no longer current.
type Controller struct {
	synth  Synthesizer
	rec    Recorder
	player Player

	scorer        Scorer
	preset        QualityPreset
	meterInterval time.Duration
	now           func() time.Time
	listener      func(State)

	requests chan request
	inbox    *inbox
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once

	// published snapshot, read by State and Waveform
	mu       sync.RWMutex
	snapshot State
	samples  []float64

	// loop-owned
	state       State
	recHandle   RecordingHandle
	recStarted  time.Time
	playHandle  PlayerHandle
	meter       *time.Ticker
	waveform    []float64
	lastSession uint64
}

// Option configures a Controller
type Option func(*Controller)

// WithScorer replaces the default RandomScorer
func WithScorer(s Scorer) Option {
	return func(c *Controller) {
		c.scorer = s
	}
}

// WithQualityPreset sets the preset passed to Recorder.CreateRecording
func WithQualityPreset(p QualityPreset) Option {
	return func(c *Controller) {
		c.preset = p
	}
}

// WithMeteringInterval sets how often the microphone level is sampled
func WithMeteringInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.meterInterval = d
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithStateListener registers fn to be called on the event loop after every
// state change. fn must not call back into the controller.
func WithStateListener(fn func(State)) Option {
	return func(c *Controller) {
		c.listener = fn
	}
}

// NewController creates a controller in the idle mode and starts its event loop.
// Call Close to release the devices.
func NewController(synth Synthesizer, rec Recorder, player Player, opts ...Option) *Controller {
	c := &Controller{
		synth:         synth,
		rec:           rec,
		player:        player,
		scorer:        NewRandomScorer(),
		preset:        PresetHigh,
		meterInterval: DefaultMeteringInterval,
		now:           time.Now,
		requests:      make(chan request),
		inbox:         newInbox(),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.run()
	return c
}

// State returns the latest published state snapshot
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Waveform returns a copy of the metering samples of the current or most recent recording
func (c *Controller) Waveform() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]float64, len(c.samples))
	copy(out, c.samples)
	return out
}

// Speak speaks text in the given language. It returns once speech has started;
// the controller goes back to idle when the synthesizer reports completion.
func (c *Controller) Speak(ctx context.Context, text, lang string) error {
	l, err := ParseLanguage(lang)
	if err != nil {
		return err
	}

	return c.do(ctx, func() error {
		if c.state.Mode != ModeIdle {
			return busyError("speak", c.state.Mode)
		}

		session := c.beginSession(ModeSpeaking)
		err := c.synth.Speak(ctx, text, l, func(err error) {
			c.inbox.post(speechDone{session: session, err: err})
		})
		if err != nil {
			c.toIdle()
			log.Error().Err(err).Str("language", string(l)).Msg("Failed to start speech synthesis")
			return platformError("start speech", err)
		}

		log.Debug().Uint64("session", session).Str("language", string(l)).Msg("Speaking")
		return nil
	})
}

// StartRecording starts a new microphone recording and clears the waveform.
func (c *Controller) StartRecording(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.state.Mode != ModeIdle {
			return busyError("start recording", c.state.Mode)
		}
		c.waveform = nil

		granted, err := c.rec.RequestPermission(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to request microphone permission")
			return platformError("request microphone permission", err)
		}
		if !granted {
			return ErrPermissionDenied
		}

		handle, err := c.rec.CreateRecording(ctx, c.preset)
		if err != nil {
			if errors.Is(err, ErrPermissionDenied) {
				return err
			}
			log.Error().Err(err).Msg("Failed to start recording")
			return platformError("start recording", err)
		}

		session := c.beginSession(ModeRecording)
		c.recHandle = handle
		c.recStarted = c.now()
		c.meter = time.NewTicker(c.meterInterval)

		log.Debug().Uint64("session", session).Str("preset", string(c.preset)).Msg("Recording started")
		return nil
	})
}

// StopRecording finalizes the current recording and makes it the last recording.
func (c *Controller) StopRecording(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.state.Mode != ModeRecording {
			return ErrNoActiveRecording
		}

		c.sampleMeter()
		elapsed := c.now().Sub(c.recStarted)
		uri, err := c.releaseRecording(ctx)
		c.toIdle()
		if err != nil {
			log.Error().Err(err).Msg("Failed to stop recording")
			return platformError("stop recording", err)
		}

		c.state.LastRecording = &Recording{
			ID:        uuid.NewString(),
			URI:       uri,
			Duration:  elapsed,
			CreatedAt: c.now(),
		}

		log.Debug().Str("uri", uri).Dur("duration", elapsed).Msg("Recording finished")
		return nil
	})
}

// PlayRecording plays the last recording, or resumes it when paused.
func (c *Controller) PlayRecording(ctx context.Context) error {
	return c.do(ctx, func() error {
		switch c.state.Mode {
		case ModeIdle:
		case ModePlayingBack:
			if !c.state.Paused {
				return busyError("play recording", c.state.Mode)
			}
			return c.resume(ctx)
		default:
			return busyError("play recording", c.state.Mode)
		}

		last := c.state.LastRecording
		if last == nil {
			return ErrNoRecordingAvailable
		}

		session := c.nextSession()
		handle, err := c.player.CreatePlayer(ctx, last.URI, func(st PlaybackStatus) {
			c.inbox.post(playbackTick{session: session, status: st})
		})
		if err != nil {
			log.Error().Err(err).Str("uri", last.URI).Msg("Failed to load recording")
			return platformError("load recording", err)
		}

		c.playHandle = handle
		c.state.Mode = ModePlayingBack
		c.state.Paused = false
		c.state.Position = 0
		c.state.Duration = last.Duration
		c.state.Session = session

		if err := handle.Play(ctx); err != nil {
			if relErr := c.releasePlayer(ctx); relErr != nil {
				log.Warn().Err(relErr).Msg("Failed to release player")
			}
			c.toIdle()
			log.Error().Err(err).Msg("Failed to start playback")
			return platformError("start playback", err)
		}

		log.Debug().Uint64("session", session).Str("uri", last.URI).Msg("Playback started")
		return nil
	})
}

// PausePlayback pauses playback. Speech cannot be resumed, so pausing while
// speaking cancels the speech.
func (c *Controller) PausePlayback(ctx context.Context) error {
	return c.do(ctx, func() error {
		switch c.state.Mode {
		case ModePlayingBack:
			if c.state.Paused {
				return nil
			}
			if err := c.playHandle.Pause(ctx); err != nil {
				if relErr := c.releasePlayer(ctx); relErr != nil {
					log.Warn().Err(relErr).Msg("Failed to release player")
				}
				c.toIdle()
				log.Error().Err(err).Msg("Failed to pause playback")
				return platformError("pause playback", err)
			}
			c.state.Paused = true
			return nil

		case ModeSpeaking:
			c.cancelSpeech()
			c.toIdle()
			return nil

		case ModeRecording:
			return busyError("pause playback", c.state.Mode)
		}
		return nil
	})
}

// StopPlayback returns the controller to idle from any mode. The player is
// stopped and unloaded, an in-progress recording is discarded and the speech
// engine is always cancelled. Calling it while idle is a no-op.
func (c *Controller) StopPlayback(ctx context.Context) error {
	return c.do(ctx, func() error {
		var errs []error

		if c.playHandle != nil {
			if err := c.releasePlayer(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if c.recHandle != nil {
			if _, err := c.releaseRecording(ctx); err != nil {
				errs = append(errs, err)
			}
			log.Info().Msg("Discarded in-progress recording")
		}
		c.cancelSpeech()

		if c.state.Mode != ModeIdle {
			c.toIdle()
		}

		if err := errors.Join(errs...); err != nil {
			log.Error().Err(err).Msg("Failed to stop playback")
			return platformError("stop playback", err)
		}
		return nil
	})
}

// AnalyzePronunciation scores the last recording.
func (c *Controller) AnalyzePronunciation(ctx context.Context) (PronunciationScore, error) {
	var rec Recording
	err := c.do(ctx, func() error {
		if c.state.LastRecording == nil {
			return ErrNoRecordingAvailable
		}
		rec = *c.state.LastRecording
		return nil
	})
	if err != nil {
		return PronunciationScore{}, err
	}

	score, err := c.scorer.Score(ctx, rec)
	if err != nil {
		return PronunciationScore{}, fmt.Errorf("failed to score recording: %w", err)
	}
	return score.clamped(), nil
}

// Close stops any activity, releases device handles and stops the event loop.
func (c *Controller) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	<-c.stopped
	return nil
}

type request struct {
	fn    func() error
	reply chan error
}

// do runs fn on the event loop. Callbacks queued before the request are applied first.
// Once the loop has accepted the request, do waits for its outcome: fn receives ctx
// and the devices it calls decide whether to abandon their work.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	req := request{fn: fn, reply: make(chan error, 1)}

	select {
	case c.requests <- req:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-req.reply
}

func (c *Controller) run() {
	defer close(c.stopped)
	c.publish()

	for {
		var meterC <-chan time.Time
		if c.meter != nil {
			meterC = c.meter.C
		}

		select {
		case req := <-c.requests:
			c.drainInbox()
			err := req.fn()
			// publish before replying so callers observe their own change
			c.publish()
			req.reply <- err
			continue
		case <-c.inbox.ready:
			c.drainInbox()
		case <-meterC:
			c.sampleMeter()
		case <-c.done:
			c.shutdown()
			c.publish()
			return
		}
		c.publish()
	}
}

func (c *Controller) drainInbox() {
	for _, ev := range c.inbox.drain() {
		switch ev := ev.(type) {
		case speechDone:
			c.onSpeechDone(ev)
		case playbackTick:
			c.onPlaybackStatus(ev)
		}
	}
}

func (c *Controller) onSpeechDone(ev speechDone) {
	if ev.session != c.state.Session || c.state.Mode != ModeSpeaking {
		log.Debug().Uint64("session", ev.session).Msg("Ignoring stale speech callback")
		return
	}
	if ev.err != nil {
		log.Warn().Err(ev.err).Msg("Speech synthesis failed")
	}
	c.toIdle()
}

func (c *Controller) onPlaybackStatus(ev playbackTick) {
	if ev.session != c.state.Session || c.state.Mode != ModePlayingBack {
		log.Debug().Uint64("session", ev.session).Msg("Ignoring stale playback status")
		return
	}

	st := ev.status
	if st.Duration > 0 {
		c.state.Duration = st.Duration
	}
	if st.DidJustFinish {
		if err := c.playHandle.Unload(); err != nil {
			log.Warn().Err(err).Msg("Failed to unload finished recording")
		}
		c.playHandle = nil
		c.toIdle()
		log.Debug().Uint64("session", ev.session).Msg("Playback finished")
		return
	}
	if st.Position > c.state.Position {
		c.state.Position = st.Position
	}
}

func (c *Controller) sampleMeter() {
	if c.state.Mode != ModeRecording || c.recHandle == nil {
		return
	}
	level := c.recHandle.MeteringLevel()
	c.waveform = append(c.waveform, max(0, min(1, level)))
	if elapsed := c.now().Sub(c.recStarted); elapsed > c.state.Position {
		c.state.Position = elapsed
	}
}

func (c *Controller) resume(ctx context.Context) error {
	if err := c.playHandle.Play(ctx); err != nil {
		if relErr := c.releasePlayer(ctx); relErr != nil {
			log.Warn().Err(relErr).Msg("Failed to release player")
		}
		c.toIdle()
		log.Error().Err(err).Msg("Failed to resume playback")
		return platformError("resume playback", err)
	}
	c.state.Paused = false
	return nil
}

// releasePlayer stops and unloads the current player. Unload always runs.
func (c *Controller) releasePlayer(ctx context.Context) (err error) {
	h := c.playHandle
	c.playHandle = nil
	defer func() {
		err = errors.Join(err, h.Unload())
	}()
	return h.Stop(ctx)
}

// releaseRecording stops the current recording handle and the metering ticker.
func (c *Controller) releaseRecording(ctx context.Context) (string, error) {
	h := c.recHandle
	c.recHandle = nil
	if c.meter != nil {
		c.meter.Stop()
		c.meter = nil
	}
	return h.StopAndRelease(ctx)
}

func (c *Controller) cancelSpeech() {
	if err := c.synth.Stop(); err != nil {
		log.Debug().Err(err).Msg("Failed to cancel speech")
	}
}

func (c *Controller) shutdown() {
	ctx := context.Background()
	if c.playHandle != nil {
		if err := c.releasePlayer(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to release player on close")
		}
	}
	if c.recHandle != nil {
		if _, err := c.releaseRecording(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to release recording on close")
		}
	}
	c.cancelSpeech()
	if c.state.Mode != ModeIdle {
		c.toIdle()
	}
}

// nextSession allocates a new session identifier without changing the mode.
func (c *Controller) nextSession() uint64 {
	c.lastSession++
	return c.lastSession
}

func (c *Controller) beginSession(mode Mode) uint64 {
	session := c.nextSession()
	c.state.Mode = mode
	c.state.Paused = false
	c.state.Position = 0
	c.state.Duration = 0
	c.state.Session = session
	return session
}

// toIdle resets the mode and invalidates callbacks from the session being left.
func (c *Controller) toIdle() {
	c.state.Mode = ModeIdle
	c.state.Paused = false
	c.state.Position = 0
	c.state.Session = c.nextSession()
}

func (c *Controller) publish() {
	c.mu.Lock()
	changed := c.snapshot != c.state || len(c.samples) != len(c.waveform)
	c.snapshot = c.state
	if len(c.samples) != len(c.waveform) {
		c.samples = append(c.samples[:0:0], c.waveform...)
	}
	state := c.snapshot
	c.mu.Unlock()

	if changed && c.listener != nil {
		c.listener(state)
	}
}
