package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/storyspeak/storyspeak/internal/audio"
	"github.com/storyspeak/storyspeak/internal/voice"
	"github.com/storyspeak/storyspeak/internal/voice/provider"
)

func handleVoices(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	locale := ""
	if tag := c.String("lang"); tag != "" {
		lang, err := audio.ParseLanguage(tag)
		if err != nil {
			return err
		}
		locale = lang.Locale()
	}

	providerName := c.String("provider")
	voices, err := voice.ListVoices(ctx, provider.NewFactory(cfg.ProviderSettings()), providerName, locale)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	w := c.Root().Writer
	if len(voices) == 0 {
		fmt.Fprintln(w, "No voices available")
		fmt.Fprintln(w, "\nConfigure a provider with 'storyspeak config init' and check its credentials.")
		return nil
	}

	if providerName != "" {
		fmt.Fprintf(w, "Available voices for provider '%s':\n", providerName)
	} else {
		fmt.Fprintln(w, "Available voices:")
	}
	for _, v := range voices {
		if v.Description != "" {
			fmt.Fprintf(w, "  - %s (%s) - %s\n", v.ID, v.Language, v.Description)
		} else {
			fmt.Fprintf(w, "  - %s (%s)\n", v.ID, v.Language)
		}
	}
	return nil
}
