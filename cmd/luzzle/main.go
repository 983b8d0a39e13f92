package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/luzzle/luzzle/internal"
	pkgconfig "github.com/luzzle/luzzle/pkg/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "luzzle",
		Usage: "Markdown piece tree with a SQLite index, image variants, and a REST/MCP surface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "luzzle.yaml",
				Value:       "luzzle.yaml",
				Sources:     cli.EnvVars("LUZZLE_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would change without mutating anything",
			},
		},
		Commands: []*cli.Command{
			syncCommand(),
			processCommand(),
			validateCommand(),
			dumpCommand(),
			deployCommand(),
			initCommand(),
			configCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig reads and validates the config file named by the global flag.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the text logger used by CLI commands. The serve command
// switches to JSON output instead.
func newLogger(cfg *internal.Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
