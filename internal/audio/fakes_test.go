package audio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type fakeSynth struct {
	mu       sync.Mutex
	speakErr error
	onDone   func(error)
	spoken   []string
	stops    int
}

func (s *fakeSynth) Speak(ctx context.Context, text string, lang Language, onDone func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.speakErr != nil {
		return s.speakErr
	}
	s.spoken = append(s.spoken, fmt.Sprintf("%s:%s", lang, text))
	s.onDone = onDone
	return nil
}

func (s *fakeSynth) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

// finish fires the pending completion callback
func (s *fakeSynth) finish(err error) {
	s.mu.Lock()
	done := s.onDone
	s.mu.Unlock()
	if done != nil {
		done(err)
	}
}

func (s *fakeSynth) callback() func(error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onDone
}

func (s *fakeSynth) setSpeakErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speakErr = err
}

func (s *fakeSynth) spokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *fakeSynth) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

type fakeRecorder struct {
	mu        sync.Mutex
	denied    bool
	permErr   error
	createErr error
	stopErr   error
	level     float64
	handles   []*fakeRecHandle

	// createDelay makes CreateRecording slow; with honorCtx it gives up when ctx ends
	createDelay time.Duration
	honorCtx    bool
}

func (r *fakeRecorder) RequestPermission(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.permErr != nil {
		return false, r.permErr
	}
	return !r.denied, nil
}

func (r *fakeRecorder) CreateRecording(ctx context.Context, preset QualityPreset) (RecordingHandle, error) {
	r.mu.Lock()
	delay, honorCtx := r.createDelay, r.honorCtx
	r.mu.Unlock()

	if delay > 0 {
		if honorCtx {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			time.Sleep(delay)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	h := &fakeRecHandle{
		uri:     fmt.Sprintf("file:///tmp/recording-%d.wav", len(r.handles)+1),
		level:   r.level,
		stopErr: r.stopErr,
		preset:  preset,
	}
	r.handles = append(r.handles, h)
	return h, nil
}

func (r *fakeRecorder) setLevel(level float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.level = level
}

func (r *fakeRecorder) last() *fakeRecHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.handles) == 0 {
		return nil
	}
	return r.handles[len(r.handles)-1]
}

type fakeRecHandle struct {
	mu       sync.Mutex
	uri      string
	level    float64
	stopErr  error
	preset   QualityPreset
	released bool
}

func (h *fakeRecHandle) StopAndRelease(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
	if h.stopErr != nil {
		return "", h.stopErr
	}
	return h.uri, nil
}

func (h *fakeRecHandle) MeteringLevel() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *fakeRecHandle) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

type fakePlayer struct {
	mu        sync.Mutex
	createErr error
	playErr   error
	pauseErr  error
	stopErr   error
	handles   []*fakePlayerHandle
}

func (p *fakePlayer) CreatePlayer(ctx context.Context, uri string, onStatus func(PlaybackStatus)) (PlayerHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	h := &fakePlayerHandle{
		uri:      uri,
		onStatus: onStatus,
		playErr:  p.playErr,
		pauseErr: p.pauseErr,
		stopErr:  p.stopErr,
	}
	p.handles = append(p.handles, h)
	return h, nil
}

func (p *fakePlayer) last() *fakePlayerHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.handles) == 0 {
		return nil
	}
	return p.handles[len(p.handles)-1]
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

type fakePlayerHandle struct {
	mu       sync.Mutex
	uri      string
	onStatus func(PlaybackStatus)
	playErr  error
	pauseErr error
	stopErr  error
	plays    int
	pauses   int
	stops    int
	unloaded bool
}

func (h *fakePlayerHandle) Play(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.plays++
	return h.playErr
}

func (h *fakePlayerHandle) Pause(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pauses++
	return h.pauseErr
}

func (h *fakePlayerHandle) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stops++
	return h.stopErr
}

func (h *fakePlayerHandle) Unload() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unloaded = true
	return nil
}

func (h *fakePlayerHandle) emit(st PlaybackStatus) {
	h.onStatus(st)
}

func (h *fakePlayerHandle) isUnloaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unloaded
}

func (h *fakePlayerHandle) playCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.plays
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
