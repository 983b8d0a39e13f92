package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/luzzle/luzzle/internal"
	"github.com/luzzle/luzzle/internal/apperr"
	"github.com/luzzle/luzzle/internal/assets"
	"github.com/luzzle/luzzle/internal/deploy"
	"github.com/luzzle/luzzle/internal/markdown"
	"github.com/luzzle/luzzle/internal/mcpserver"
	"github.com/luzzle/luzzle/internal/piece"
	"github.com/luzzle/luzzle/internal/schema"
	"github.com/luzzle/luzzle/internal/sync"
	pkgconfig "github.com/luzzle/luzzle/pkg/config"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile the piece tree into the SQLite database",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Rewrite rows even when files look unchanged"},
			&cli.BoolFlag{Name: "prune", Usage: "Delete rows and assets with no backing file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			store, err := internal.NewStore(cfg)
			if err != nil {
				return err
			}
			database, err := internal.OpenDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			types, err := internal.ResolveTypes(cfg.Pieces.Types)
			if err != nil {
				return err
			}

			engine := sync.NewEngine(database, store, types, logger)
			report, err := engine.Run(ctx, sync.Options{
				Force:  cmd.Bool("force"),
				Prune:  cmd.Bool("prune"),
				DryRun: cmd.Bool("dry-run"),
			})
			if err != nil {
				return err
			}
			printReport(logger, report)
			return nil
		},
	}
}

// printReport logs the sync outcome. Per-piece failures are warnings, not a
// command error: one bad file must not block the rest of the tree.
func printReport(logger *slog.Logger, report *sync.Report) {
	for _, f := range report.Failures {
		logger.Warn("piece failed",
			slog.String("path", f.Path),
			slog.String("type", f.Type),
			slog.String("error", f.Err.Error()))
	}
	logger.Info("sync complete",
		slog.Int("inserted", report.Inserted),
		slog.Int("updated", report.Updated),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("deleted", report.Deleted),
		slog.Int("pruned_assets", report.PrunedAssets),
		slog.Int("failed", len(report.Failures)))
}

func processCommand() *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Generate resized variants for every referenced image asset",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Regenerate variants even when the source is unchanged"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			store, err := internal.NewStore(cfg)
			if err != nil {
				return err
			}
			database, err := internal.OpenDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			proc := assets.NewProcessor(database, store, cfg.Assets.Widths, logger)
			result, err := proc.Run(ctx, cmd.Bool("force"), cmd.Bool("dry-run"))
			if err != nil {
				return err
			}
			logger.Info("processing complete",
				slog.Int("generated", result.Generated),
				slog.Int("skipped", result.Skipped),
				slog.Int("failed", result.Failed))
			return nil
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate one Markdown piece file without touching the database",
		ArgsUsage: "<path>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target := cmd.Args().First()
			if target == "" {
				return cli.Exit("validate: a file path is required", 2)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			newLogger(cfg)

			rel := treeRelative(cfg.Pieces.Path, target)
			s, slug, ok := piece.Resolve(rel)
			if !ok {
				return cli.Exit(fmt.Sprintf("validate: %s does not match any piece type", rel), 1)
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return err
			}
			if _, err := markdown.Decode(slug, data, s); err != nil {
				var perr *apperr.PieceError
				if errors.As(err, &perr) {
					for _, fe := range perr.Fields {
						fmt.Fprintf(os.Stderr, "%s: %s: %s\n", rel, fe.Field, fe.Message)
					}
					return cli.Exit("", 1)
				}
				return err
			}
			fmt.Printf("%s: valid %s piece (slug %s)\n", rel, s.Type, slug)
			return nil
		},
	}
}

// treeRelative turns an OS path into a slash path relative to the tree root,
// falling back to the bare filename when the target lives outside the tree.
func treeRelative(root, target string) string {
	absRoot, err1 := filepath.Abs(root)
	absTarget, err2 := filepath.Abs(target)
	if err1 == nil && err2 == nil {
		if rel, err := filepath.Rel(absRoot, absTarget); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(target)
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "Materialize database rows back into canonical Markdown files",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			store, err := internal.NewStore(cfg)
			if err != nil {
				return err
			}
			database, err := internal.OpenDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			types, err := internal.ResolveTypes(cfg.Pieces.Types)
			if err != nil {
				return err
			}

			dryRun := cmd.Bool("dry-run")
			written := 0
			for _, s := range types {
				for offset := 0; ; offset += 200 {
					rows, _, err := database.ListPieces(s, 200, offset)
					if err != nil {
						return err
					}
					for _, row := range rows {
						p, err := piece.FromStored(s, row)
						if err != nil {
							return err
						}
						data, err := markdown.Serialize(p.Note, p.Frontmatter)
						if err != nil {
							return err
						}
						path := piece.FilePath(s, p.Slug)
						if dryRun {
							logger.Info("would write", slog.String("path", path))
							continue
						}
						if err := store.Write(path, data); err != nil {
							return err
						}
						written++
					}
					if len(rows) < 200 {
						break
					}
				}
			}
			logger.Info("dump complete", slog.Int("written", written))
			return nil
		},
	}
}

func deployCommand() *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Trigger the downstream rebuild webhook",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			if cfg.Deploy.WebhookURL == "" {
				return fmt.Errorf("deploy: webhook_url is not configured")
			}
			if cmd.Bool("dry-run") {
				logger.Info("would trigger deploy", slog.String("url", cfg.Deploy.WebhookURL))
				return nil
			}
			if err := deploy.Trigger(ctx, cfg.Deploy.WebhookURL, cfg.Deploy.Token); err != nil {
				return err
			}
			logger.Info("deploy triggered", slog.String("url", cfg.Deploy.WebhookURL))
			return nil
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Scaffold a new piece tree and config file",
		ArgsUsage: "<dir>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.Args().First()
			if dir == "" {
				return cli.Exit("init: a target directory is required", 2)
			}
			if cmd.Bool("dry-run") {
				fmt.Printf("would scaffold piece tree in %s\n", dir)
				return nil
			}
			if err := scaffold(dir); err != nil {
				return err
			}
			fmt.Printf("initialized piece tree in %s\n", dir)
			return nil
		},
	}
}

const configTemplate = `app:
  log_level: INFO
  http:
    port: 8080

pieces:
  path: %s

storage:
  backend: fs

sqlite:
  path: %s

auth:
  mode: disabled

assets:
  widths: [320, 640, 1280]

deploy:
  webhook_url: ""
  token: ""
`

// scaffold creates the directory layout and a starter config. Existing files
// are left alone so init is safe to re-run.
func scaffold(dir string) error {
	treePath := filepath.Join(dir, "pieces")
	for _, s := range schema.Types() {
		if err := os.MkdirAll(filepath.Join(treePath, s.Type), 0o755); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Join(treePath, piece.AssetDir), 0o755); err != nil {
		return err
	}

	cfgPath := filepath.Join(dir, "luzzle.yaml")
	if _, err := os.Stat(cfgPath); err == nil {
		return nil
	}
	content := fmt.Sprintf(configTemplate, "./pieces", "./luzzle.db")
	return os.WriteFile(cfgPath, []byte(content), 0o644)
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Read or write config values by dotted key",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the value at a dotted key (e.g. sqlite.path)",
				ArgsUsage: "<key>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					key := cmd.Args().First()
					if key == "" {
						return cli.Exit("config get: a key is required", 2)
					}
					v, err := pkgconfig.Get(cmd.String("config"), key)
					if err != nil {
						return err
					}
					fmt.Println(v)
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "Write a value at a dotted key",
				ArgsUsage: "<key> <value>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					key := cmd.Args().Get(0)
					value := cmd.Args().Get(1)
					if key == "" || value == "" {
						return cli.Exit("config set: key and value are required", 2)
					}
					if cmd.Bool("dry-run") {
						fmt.Printf("would set %s = %s\n", key, value)
						return nil
					}
					return pkgconfig.Set(cmd.String("config"), key, value)
				},
			},
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server with a file watcher and SSE events",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return internal.Run(ctx, internal.WithConfig(cfg))
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio for LLM integration",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			store, err := internal.NewStore(cfg)
			if err != nil {
				return err
			}
			database, err := internal.OpenDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			types, err := internal.ResolveTypes(cfg.Pieces.Types)
			if err != nil {
				return err
			}
			engine := sync.NewEngine(database, store, types, logger)

			return mcpserver.New(store, database, engine).ServeStdio()
		},
	}
}
