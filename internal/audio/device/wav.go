package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/storyspeak/storyspeak/internal/audio"
)

const (
	bitDepth    = 16
	numChannels = 1
	pcmFormat   = 1
	fullScale   = 32768.0
)

// SampleRate returns the capture rate for a quality preset
func SampleRate(p audio.QualityPreset) int {
	if p == audio.PresetLow {
		return 16000
	}
	return 44100
}

func newEncoder(w io.WriteSeeker, rate int) *wav.Encoder {
	return wav.NewEncoder(w, rate, bitDepth, numChannels, pcmFormat)
}

func intBuffer(rate int, data []int) *goaudio.IntBuffer {
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: numChannels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
}

// WAVDuration reads the playing time from a WAV file header
func WAVDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("not a valid WAV file: %s", path)
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("failed to read WAV duration: %w", err)
	}
	return d, nil
}

// WriteTone writes a sine wave clip, used by the simulated devices
func WriteTone(path string, d time.Duration, rate int, freq float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}

	n := int(d.Seconds() * float64(rate))
	data := make([]int, n)
	for i := range data {
		// fade in and out so playback does not click
		env := math.Min(1, math.Min(float64(i), float64(n-i))/float64(rate/50+1))
		data[i] = int(0.3 * env * (fullScale - 1) * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}

	enc := newEncoder(f, rate)
	if err := enc.Write(intBuffer(rate, data)); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode audio: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to finalize audio: %w", err)
	}
	return f.Close()
}

// EncodePCM writes headerless 16-bit mono little-endian PCM from r to w as a WAV file
func EncodePCM(w io.WriteSeeker, r io.Reader, rate int) error {
	enc := newEncoder(w, rate)
	buf := make([]byte, 8192)
	var samples []int
	total := 0

	for {
		n, err := io.ReadFull(r, buf)
		if n > 1 {
			samples = decodePCM(buf[:n], samples)
			if werr := enc.Write(intBuffer(rate, samples)); werr != nil {
				return fmt.Errorf("failed to encode audio: %w", werr)
			}
			total += len(samples)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read PCM audio: %w", err)
		}
	}

	if total == 0 {
		return errors.New("no PCM samples to encode")
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize audio: %w", err)
	}
	return nil
}

// decodePCM converts little-endian signed 16-bit samples to ints.
func decodePCM(b []byte, dst []int) []int {
	dst = dst[:0]
	for i := 0; i+1 < len(b); i += 2 {
		dst = append(dst, int(int16(binary.LittleEndian.Uint16(b[i:]))))
	}
	return dst
}

// rmsLevel returns the RMS of samples normalized to [0,1]
func rmsLevel(samples []int) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / fullScale
		sum += v * v
	}
	return math.Min(1, math.Sqrt(sum/float64(len(samples))))
}

// FileURI returns the file:// URI for a local path
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// PathFromURI accepts a file:// URI or a plain path
func PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	// single-letter schemes are Windows drive letters
	if err != nil || len(u.Scheme) <= 1 {
		return uri, nil
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported URI scheme %q", u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}
