package audio

import (
	"errors"
	"fmt"
)

// Error kinds returned by the Controller. Match them with errors.Is.
var (
	// ErrPermissionDenied is returned when microphone access was not granted.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceBusy is returned when an operation conflicts with the current mode.
	ErrDeviceBusy = errors.New("audio device busy")

	// ErrNoActiveRecording is returned by StopRecording outside the recording mode.
	ErrNoActiveRecording = errors.New("no active recording")

	// ErrNoRecordingAvailable is returned when an operation needs a completed recording.
	ErrNoRecordingAvailable = errors.New("no recording available")

	// ErrPlatformAudioFailure wraps failures reported by the synthesis,
	// recording or playback devices.
	ErrPlatformAudioFailure = errors.New("platform audio failure")

	// ErrUnsupportedLanguage is returned for language tags outside zh, en and ja.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("audio controller closed")
)

// platformError tags err as an ErrPlatformAudioFailure while keeping the cause
// reachable through errors.Is / errors.As.
func platformError(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrPlatformAudioFailure, op, err)
}

func busyError(op string, mode Mode) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrDeviceBusy, op, mode)
}
