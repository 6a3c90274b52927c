package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"

	"github.com/storyspeak/storyspeak/internal/audio"
)

// startupGrace is how long CreateRecording waits for the capture process to
// either produce audio or fail.
const startupGrace = 300 * time.Millisecond

// RecorderConfig configures a CommandRecorder
type RecorderConfig struct {
	// Command is the capture program; empty autodetects arecord, rec or pw-record.
	Command string
	// Dir receives the WAV files; empty uses the system temp directory.
	Dir string
	// Disabled makes every permission request return false.
	Disabled bool
}

// CommandRecorder records the microphone through an external capture program.
type CommandRecorder struct {
	config RecorderConfig
}

// NewCommandRecorder creates a recorder
func NewCommandRecorder(config RecorderConfig) *CommandRecorder {
	return &CommandRecorder{config: config}
}

// RequestPermission implements audio.Recorder
func (r *CommandRecorder) RequestPermission(ctx context.Context) (bool, error) {
	if r.config.Disabled {
		log.Debug().Msg("Microphone disabled by configuration")
		return false, nil
	}
	name := detectCommand(r.config.Command, captureCommands)
	if name == "" {
		return false, fmt.Errorf("no capture command found (tried %s)", strings.Join(captureCommands, ", "))
	}
	if !isCommandAvailable(name) {
		return false, fmt.Errorf("capture command not found: %s", name)
	}
	return true, nil
}

// CreateRecording implements audio.Recorder
func (r *CommandRecorder) CreateRecording(ctx context.Context, preset audio.QualityPreset) (audio.RecordingHandle, error) {
	name := detectCommand(r.config.Command, captureCommands)
	rate := SampleRate(preset)
	args := captureArgs(name, rate)
	if args == nil {
		return nil, fmt.Errorf("unsupported capture command: %q", name)
	}

	if r.config.Dir != "" {
		if err := os.MkdirAll(r.config.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create recording directory: %w", err)
		}
	}
	file, err := os.CreateTemp(r.config.Dir, "recording_*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	// the capture process outlives ctx, it is stopped by StopAndRelease
	cmd := exec.Command(name, args...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		discardFile(file)
		return nil, fmt.Errorf("failed to open capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		discardFile(file)
		if errors.Is(err, os.ErrPermission) {
			return nil, audio.ErrPermissionDenied
		}
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	h := &commandRecording{
		cmd:       cmd,
		file:      file,
		enc:       newEncoder(file, rate),
		rate:      rate,
		stderr:    stderr,
		firstData: make(chan struct{}),
		captured:  make(chan struct{}),
	}
	go h.capture(stdout)

	select {
	case <-h.firstData:
	case <-h.captured:
		_ = cmd.Wait()
		discardFile(file)
		msg := strings.TrimSpace(stderr.String())
		if isPermissionMessage(msg) {
			return nil, audio.ErrPermissionDenied
		}
		return nil, fmt.Errorf("%s exited before recording: %s", name, msg)
	case <-time.After(startupGrace):
		// quiet devices may buffer before the first chunk
	case <-ctx.Done():
		_ = h.kill()
		discardFile(file)
		return nil, ctx.Err()
	}

	log.Info().Str("command", name).Int("sample_rate", rate).Str("file", file.Name()).Msg("Recording started")
	return h, nil
}

type commandRecording struct {
	cmd    *exec.Cmd
	file   *os.File
	enc    *wav.Encoder
	rate   int
	stderr *lockedBuffer

	level     atomic.Uint64
	samples   atomic.Int64
	firstOnce sync.Once
	firstData chan struct{}
	captured  chan struct{}
	err       error // set by capture before captured is closed

	releaseOnce sync.Once
	uri         string
	releaseErr  error
}

// capture streams PCM from the process into the WAV encoder
func (h *commandRecording) capture(r io.Reader) {
	defer close(h.captured)

	// 50ms chunks keep the meter responsive
	buf := make([]byte, h.rate/20*2)
	var pending []byte
	var ints []int

	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.firstOnce.Do(func() { close(h.firstData) })

			data := append(pending, buf[:n]...)
			even := len(data) &^ 1
			ints = decodePCM(data[:even], ints)
			pending = append(pending[:0], data[even:]...)

			h.level.Store(math.Float64bits(rmsLevel(ints)))
			h.samples.Add(int64(len(ints)))
			if werr := h.enc.Write(intBuffer(h.rate, ints)); werr != nil {
				h.err = fmt.Errorf("failed to encode audio: %w", werr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				h.err = fmt.Errorf("failed to read capture stream: %w", err)
			}
			return
		}
	}
}

// MeteringLevel implements audio.RecordingHandle
func (h *commandRecording) MeteringLevel() float64 {
	return math.Float64frombits(h.level.Load())
}

// StopAndRelease implements audio.RecordingHandle. It is safe to call more than once.
func (h *commandRecording) StopAndRelease(ctx context.Context) (string, error) {
	h.releaseOnce.Do(func() {
		h.uri, h.releaseErr = h.release(ctx)
	})
	return h.uri, h.releaseErr
}

func (h *commandRecording) release(ctx context.Context) (string, error) {
	if err := h.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Debug().Err(err).Msg("Interrupt failed, killing capture process")
		_ = h.cmd.Process.Kill()
	}

	select {
	case <-h.captured:
	case <-ctx.Done():
		_ = h.cmd.Process.Kill()
		<-h.captured
	}
	// exit status after an interrupt is not meaningful
	_ = h.cmd.Wait()

	if err := h.enc.Close(); err != nil {
		discardFile(h.file)
		return "", fmt.Errorf("failed to finalize recording: %w", err)
	}
	if err := h.file.Close(); err != nil {
		return "", fmt.Errorf("failed to close recording: %w", err)
	}
	if h.err != nil {
		_ = os.Remove(h.file.Name())
		return "", h.err
	}
	if h.samples.Load() == 0 {
		_ = os.Remove(h.file.Name())
		msg := strings.TrimSpace(h.stderr.String())
		if isPermissionMessage(msg) {
			return "", audio.ErrPermissionDenied
		}
		return "", fmt.Errorf("no audio captured: %s", msg)
	}

	log.Info().Str("file", h.file.Name()).Int64("samples", h.samples.Load()).Msg("Recording saved")
	return FileURI(h.file.Name()), nil
}

func (h *commandRecording) kill() error {
	err := h.cmd.Process.Kill()
	<-h.captured
	_ = h.cmd.Wait()
	return err
}

func discardFile(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}

func isPermissionMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

// lockedBuffer collects process stderr written from the exec goroutine
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
