package audio

import "time"

// Mode is the mutually exclusive mode of the audio session.
type Mode int

const (
	ModeIdle Mode = iota
	ModeSpeaking
	ModeRecording
	ModePlayingBack
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeSpeaking:
		return "speaking"
	case ModeRecording:
		return "recording"
	case ModePlayingBack:
		return "playing_back"
	default:
		return "unknown"
	}
}

// Recording is a completed microphone recording owned by the controller.
type Recording struct {
	ID        string        `json:"id"`
	URI       string        `json:"uri"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// State is a snapshot of the audio session.
type State struct {
	Mode Mode `json:"mode"`

	// Paused is only ever true while Mode is ModePlayingBack.
	Paused bool `json:"paused"`

	// Position is the elapsed time into the current playback or recording.
	Position time.Duration `json:"position"`

	// Duration is the length of the loaded clip, zero while speaking or recording.
	Duration time.Duration `json:"duration"`

	LastRecording *Recording `json:"last_recording,omitempty"`

	// Session identifies the current speaking, recording or playback instance.
	Session uint64 `json:"session"`
}

// IsPlaying reports whether a clip is audibly playing.
func (s State) IsPlaying() bool {
	return s.Mode == ModePlayingBack && !s.Paused
}

// PositionMillis returns Position in milliseconds.
func (s State) PositionMillis() int64 {
	return s.Position.Milliseconds()
}

// DurationMillis returns Duration in milliseconds.
func (s State) DurationMillis() int64 {
	return s.Duration.Milliseconds()
}

// PronunciationScore is the result of a pronunciation analysis. Every field is in [0,100].
type PronunciationScore struct {
	Accuracy     int `json:"accuracy"`
	Fluency      int `json:"fluency"`
	Completeness int `json:"completeness"`
	Overall      int `json:"overall"`
}

func (s PronunciationScore) clamped() PronunciationScore {
	return PronunciationScore{
		Accuracy:     clampScore(s.Accuracy),
		Fluency:      clampScore(s.Fluency),
		Completeness: clampScore(s.Completeness),
		Overall:      clampScore(s.Overall),
	}
}

func clampScore(v int) int {
	return max(0, min(100, v))
}
