package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/storyspeak/storyspeak/internal/audio"
	"github.com/storyspeak/storyspeak/internal/history"
)

// waveformWidth is the number of metering samples shown after a recording
const waveformWidth = 40

func handleStory(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	s, err := pickStory(ctx, cfg, c.String("id"))
	if err != nil {
		return fmt.Errorf("failed to get story: %w", err)
	}

	w := c.Root().Writer
	if c.Bool("json") {
		output, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format story: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	printStory(w, s)
	return nil
}

func handleSpeak(ctx context.Context, c *cli.Command) error {
	text := strings.Join(c.Args().Slice(), " ")
	if text == "" {
		log.Debug().Msg("Reading text from stdin")
		data, err := io.ReadAll(c.Root().Reader)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return fmt.Errorf("no text provided")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctrl, err := newController(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Close() }()

	if err := ctrl.Speak(ctx, text, c.String("lang")); err != nil {
		return fmt.Errorf("failed to speak: %w", err)
	}
	return ctrl.waitIdle(ctx)
}

func handlePractice(ctx context.Context, c *cli.Command) error {
	lang, err := audio.ParseLanguage(c.String("lang"))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	s, err := pickStory(ctx, cfg, c.String("id"))
	if err != nil {
		return fmt.Errorf("failed to get story: %w", err)
	}

	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctrl, err := newController(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Close() }()

	w := c.Root().Writer
	printStory(w, s)

	fmt.Fprintf(w, "\n🔊 Listen (%s)...\n", lang.DisplayName())
	if err := ctrl.Speak(ctx, s.Text(lang), string(lang)); err != nil {
		return fmt.Errorf("failed to speak story: %w", err)
	}
	if err := ctrl.waitIdle(ctx); err != nil {
		return err
	}

	rec, err := recordAttempt(ctx, c, ctrl.Controller)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "🎙  Recorded %.1fs %s\n", rec.Duration.Seconds(), sparkline(ctrl.Waveform(), waveformWidth))

	if !c.Bool("no-playback") {
		fmt.Fprintln(w, "▶️  Playing back your recording...")
		if err := ctrl.PlayRecording(ctx); err != nil {
			return fmt.Errorf("failed to play recording: %w", err)
		}
		if err := ctrl.waitIdle(ctx); err != nil {
			return err
		}
	}

	score, err := ctrl.AnalyzePronunciation(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	printScore(w, score)

	if _, err := store.Add(ctx, history.Attempt{
		StoryID:      s.ID,
		Language:     lang,
		Score:        score,
		RecordingURI: rec.URI,
	}); err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}

	streak, err := store.Streak(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	fmt.Fprintf(w, "\n🔥 Practice streak: %d day(s)\n", streak)
	return nil
}

// recordAttempt records until --duration elapses or the user presses Enter
func recordAttempt(ctx context.Context, c *cli.Command, ctrl *audio.Controller) (*audio.Recording, error) {
	w := c.Root().Writer

	if err := ctrl.StartRecording(ctx); err != nil {
		if errors.Is(err, audio.ErrPermissionDenied) {
			return nil, fmt.Errorf("microphone access was denied: %w", err)
		}
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}

	if d := c.Duration("duration"); d > 0 {
		fmt.Fprintf(w, "🎙  Recording for %s, repeat the story now\n", d)
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			_ = ctrl.StopPlayback(context.Background())
			return nil, ctx.Err()
		}
	} else {
		fmt.Fprintln(w, "🎙  Recording, repeat the story and press Enter when done")
		if err := waitForEnter(ctx, c.Root().Reader); err != nil {
			_ = ctrl.StopPlayback(context.Background())
			return nil, err
		}
	}

	if err := ctrl.StopRecording(ctx); err != nil {
		return nil, fmt.Errorf("failed to stop recording: %w", err)
	}

	rec := ctrl.State().LastRecording
	if rec == nil {
		return nil, audio.ErrNoRecordingAvailable
	}
	return rec, nil
}

func waitForEnter(ctx context.Context, r io.Reader) error {
	lines := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(r).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		lines <- err
	}()

	select {
	case err := <-lines:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
