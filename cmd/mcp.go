package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/storyspeak/storyspeak/internal/mcpserver"
)

func handleMCP(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	gen, _, err := newGenerator(cfg)
	if err != nil {
		return err
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

	srv := mcpserver.New(gen, store, ctrl, version)
	log.Info().Str("history", cfg.HistoryPath()).Msg("Starting MCP server")
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server stopped: %w", err)
	}
	return nil
}
