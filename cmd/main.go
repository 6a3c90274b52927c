package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var (
	version  = "dev"
	revision = "none"
)

func main() {
	// Setup logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Failed to run application")
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "storyspeak",
		Usage: "Practice speaking short stories in Chinese, English and Japanese",
		Description: `storyspeak reads a short multilingual story aloud, records you repeating it,
plays the recording back and scores your pronunciation. Scores are kept in a
local history so you can follow your progress and practice streak.`,
		Version: fmt.Sprintf("%s (rev: %s)", version, revision),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"V"},
				Usage:   "Enable verbose logging",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a storyspeak.json config file",
			},
			&cli.BoolFlag{
				Name:  "simulate",
				Usage: "Use a simulated microphone and player instead of audio hardware",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "story",
				Usage:   "Show a practice story",
				Aliases: []string{"s"},
				Action:  handleStory,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Show a catalog story by ID instead of generating one",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the story as JSON",
					},
				},
			},
			{
				Name:      "speak",
				Usage:     "Speak text aloud (stdin when no text is given)",
				ArgsUsage: "[text]",
				Action:    handleSpeak,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "lang",
						Aliases: []string{"l"},
						Usage:   "Language of the text (zh, en, ja)",
						Value:   "en",
					},
				},
			},
			{
				Name:    "practice",
				Usage:   "Listen to a story, record yourself and get a pronunciation score",
				Aliases: []string{"p"},
				Action:  handlePractice,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "lang",
						Aliases: []string{"l"},
						Usage:   "Language to practice (zh, en, ja)",
						Value:   "en",
					},
					&cli.StringFlag{
						Name:  "id",
						Usage: "Practice a catalog story by ID",
					},
					&cli.DurationFlag{
						Name:    "duration",
						Aliases: []string{"d"},
						Usage:   "Stop recording after this long (0 waits for Enter)",
					},
					&cli.BoolFlag{
						Name:  "no-playback",
						Usage: "Skip playing the recording back",
					},
				},
			},
			{
				Name:    "history",
				Usage:   "Show recent scores, per-language averages and the practice streak",
				Aliases: []string{"h"},
				Action:  handleHistory,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Number of recent attempts to show",
						Value:   10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the history as JSON",
					},
				},
			},
			{
				Name:   "voices",
				Usage:  "List voices of the cloud speech providers",
				Action: handleVoices,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   "Provider to query (polly, gcp, openai, remote); all when empty",
					},
					&cli.StringFlag{
						Name:    "lang",
						Aliases: []string{"l"},
						Usage:   "Only list voices for this language (zh, en, ja)",
					},
				},
			},
			{
				Name:  "config",
				Usage: "Manage configuration",
				Commands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show the effective configuration (secrets masked)",
						Action: handleConfigShow,
					},
					{
						Name:   "validate",
						Usage:  "Validate the configuration file",
						Action: handleConfigValidate,
					},
					{
						Name:   "init",
						Usage:  "Create an example configuration file",
						Action: handleConfigInit,
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:    "global",
								Aliases: []string{"g"},
								Usage:   "Create the per-user config instead of the project config",
							},
						},
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve story generation, score history and speech as MCP tools over stdio",
				Action: handleMCP,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			return nil
		},
	}
}
