package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/storyspeak/storyspeak/internal/history"
)

// historyReport is the --json output of the history command
type historyReport struct {
	Recent  []history.Attempt         `json:"recent"`
	Summary []history.LanguageSummary `json:"summary"`
	Streak  int                       `json:"streak_days"`
}

func handleHistory(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	limit := int(c.Int("limit"))
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	recent, err := store.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	summary, err := store.Summary(ctx)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	streak, err := store.Streak(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	w := c.Root().Writer
	if c.Bool("json") {
		report := historyReport{Recent: recent, Summary: summary, Streak: streak}
		if report.Recent == nil {
			report.Recent = []history.Attempt{}
		}
		if report.Summary == nil {
			report.Summary = []history.LanguageSummary{}
		}
		output, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format history: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	printHistory(w, recent, summary, streak)
	return nil
}
