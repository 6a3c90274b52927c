package voice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/storyspeak/storyspeak/internal/audio"
)

// Speech commands in detection order
var systemCommands = []string{"say", "espeak-ng", "espeak"}

// defaultWordsPerMinute is the normal speaking rate of say and espeak
const defaultWordsPerMinute = 175

// systemVoices maps a speech command to a voice per language
var systemVoices = map[string]map[audio.Language]string{
	"say": {
		audio.LanguageChinese:  "Tingting",
		audio.LanguageEnglish:  "Samantha",
		audio.LanguageJapanese: "Kyoko",
	},
	"espeak-ng": {
		audio.LanguageChinese:  "cmn",
		audio.LanguageEnglish:  "en-us",
		audio.LanguageJapanese: "ja",
	},
	"espeak": {
		audio.LanguageChinese:  "zh",
		audio.LanguageEnglish:  "en-us",
		audio.LanguageJapanese: "ja",
	},
}

// SystemConfig configures a SystemEngine
type SystemConfig struct {
	// Command is the speech program; empty autodetects.
	Command string
	// Voices overrides the voice per language.
	Voices map[audio.Language]string
	// Speed is a rate multiplier, 1.0 is normal.
	Speed float64
}

// SystemEngine speaks through the platform speech command
type SystemEngine struct {
	command string
	voices  map[audio.Language]string
	speed   float64

	mu      sync.Mutex
	current *utterance
}

type utterance struct {
	cmd     *exec.Cmd
	stopped bool
}

// NewSystemEngine creates a system speech engine
func NewSystemEngine(config SystemConfig) (*SystemEngine, error) {
	command := config.Command
	if command == "" {
		for _, c := range systemCommands {
			if isCommandAvailable(c) {
				command = c
				break
			}
		}
	}
	if command == "" {
		return nil, fmt.Errorf("no speech command found (tried %s)", strings.Join(systemCommands, ", "))
	}

	voices := make(map[audio.Language]string)
	for lang, v := range systemVoices[command] {
		voices[lang] = v
	}
	for lang, v := range config.Voices {
		voices[lang] = v
	}

	return &SystemEngine{command: command, voices: voices, speed: config.Speed}, nil
}

// Command returns the speech program in use
func (e *SystemEngine) Command() string {
	return e.command
}

// Speak implements audio.Synthesizer
func (e *SystemEngine) Speak(ctx context.Context, text string, lang audio.Language, onDone func(error)) error {
	text = normalizeText(text)
	if text == "" {
		return errors.New("text cannot be empty")
	}

	_ = e.Stop()

	cmd := exec.Command(e.command, systemArgs(e.command, e.voices[lang], e.speed, text)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", e.command, err)
	}

	u := &utterance{cmd: cmd}
	e.mu.Lock()
	e.current = u
	e.mu.Unlock()

	log.Debug().Str("command", e.command).Str("voice", e.voices[lang]).Int("length", len(text)).Msg("Speech process started")

	go func() {
		err := cmd.Wait()

		e.mu.Lock()
		stopped := u.stopped
		if e.current == u {
			e.current = nil
		}
		e.mu.Unlock()

		if err != nil && !stopped {
			onDone(fmt.Errorf("%s exited: %w", e.command, err))
			return
		}
		onDone(nil)
	}()

	return nil
}

// Stop implements audio.Synthesizer
func (e *SystemEngine) Stop() error {
	e.mu.Lock()
	u := e.current
	e.current = nil
	if u != nil {
		u.stopped = true
	}
	e.mu.Unlock()

	if u == nil {
		return nil
	}
	if err := u.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop %s: %w", e.command, err)
	}
	return nil
}

func systemArgs(command, voice string, speed float64, text string) []string {
	var args []string
	if voice != "" {
		args = append(args, "-v", voice)
	}
	if speed > 0 && speed != 1.0 {
		wpm := strconv.Itoa(int(defaultWordsPerMinute * speed))
		if command == "say" {
			args = append(args, "-r", wpm)
		} else {
			args = append(args, "-s", wpm)
		}
	}
	return append(args, text)
}

// normalizeText joins lines so the whole story is read as one utterance
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// isCommandAvailable checks if a command is available
func isCommandAvailable(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
