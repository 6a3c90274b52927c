package audio

import (
	"context"
	"time"
)

// Synthesizer speaks text on the device speaker.
type Synthesizer interface {
	// Speak starts speaking text and returns once synthesis has been started.
	// onDone is called exactly once when speech completes or fails; it may be
	// called from any goroutine.
	Speak(ctx context.Context, text string, lang Language, onDone func(error)) error

	// Stop cancels any ongoing speech. Calling it while silent is not an error.
	Stop() error
}

// QualityPreset selects the recording quality.
type QualityPreset string

const (
	PresetHigh QualityPreset = "high"
	PresetLow  QualityPreset = "low"
)

// Recorder allocates recording sessions on the device microphone.
type Recorder interface {
	// RequestPermission asks for microphone access.
	RequestPermission(ctx context.Context) (bool, error)

	// CreateRecording allocates and starts a recording session.
	CreateRecording(ctx context.Context, preset QualityPreset) (RecordingHandle, error)
}

// RecordingHandle is an in-progress recording.
type RecordingHandle interface {
	// StopAndRelease finalizes the clip and returns its URI. The handle's
	// resources are released even when an error is returned.
	StopAndRelease(ctx context.Context) (string, error)

	// MeteringLevel returns the live input amplitude normalized to [0,1].
	MeteringLevel() float64
}

// PlaybackStatus is reported periodically by a PlayerHandle.
type PlaybackStatus struct {
	Position      time.Duration
	Duration      time.Duration
	IsPlaying     bool
	DidJustFinish bool
}

// Player loads clips for playback.
type Player interface {
	// CreatePlayer loads the clip at uri. onStatus may be called from any goroutine.
	CreatePlayer(ctx context.Context, uri string, onStatus func(PlaybackStatus)) (PlayerHandle, error)
}

// PlayerHandle controls a loaded clip.
type PlayerHandle interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Unload() error
}
