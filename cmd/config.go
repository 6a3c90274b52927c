package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/storyspeak/storyspeak/internal/config"
)

func handleConfigShow(ctx context.Context, c *cli.Command) error {
	w := c.Root().Writer
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// Mask secrets before displaying
	output, err := json.MarshalIndent(cfg.MaskSecrets(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}

	fmt.Fprintln(w, "Effective configuration (secrets masked):")
	fmt.Fprintln(w, string(output))
	return nil
}

func handleConfigValidate(ctx context.Context, c *cli.Command) error {
	w := c.Root().Writer
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	problems := cfg.Validate()
	if len(problems) == 0 {
		fmt.Fprintln(w, "✅ Configuration is valid.")
		return nil
	}

	fmt.Fprintln(w, "❌ Configuration has errors:")
	for _, p := range problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	return fmt.Errorf("configuration validation failed")
}

func handleConfigInit(ctx context.Context, c *cli.Command) error {
	configPath := filepath.Join(config.DirName, config.FileName)
	if c.Bool("global") {
		configPath = config.NewLoader().GlobalPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write with secure permissions
	if err := os.WriteFile(configPath, []byte(config.GenerateExampleConfig()), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	w := c.Root().Writer
	fmt.Fprintf(w, "✅ Created configuration: %s\n", configPath)
	fmt.Fprintln(w, "\nEdit the file to choose a speech engine, voices and story source.")
	fmt.Fprintln(w, "Use ${ENV_VAR} syntax for sensitive values like API keys.")
	return nil
}
