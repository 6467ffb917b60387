package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/opdedupe/internal"
	"github.com/starford/opdedupe/internal/reconcile"
	pkgconfig "github.com/starford/opdedupe/pkg/config"
)

var version = "dev"

// loadConfig reads the config file (falling back to defaults when it is
// absent) and applies command-line overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	loaded, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !loaded {
		slog.Debug("config file not found; using defaults", slog.String("path", configPath))
	}

	if cmd.IsSet("workers") {
		cfg.Fetch.Workers = int(cmd.Int("workers"))
	}
	if cmd.IsSet("vault") {
		cfg.Store.Vault = cmd.String("vault")
	}
	if cmd.IsSet("report") {
		cfg.Report.Path = cmd.String("report")
	}
	if cmd.IsSet("schema") {
		cfg.Report.Schema = cmd.String("schema")
	}
	if cmd.IsSet("allow-destructive") {
		cfg.Apply.AllowDestructive = cmd.Bool("allow-destructive")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// options builds the common application options for cmd.
func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func run(fn func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := options(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, opts)
	}
}

func reportFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "report",
		Aliases: []string{"r"},
		Usage:   "Path to the duplicate report (overrides report.path)",
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "opdedupe",
		Usage:   "Find and reconcile duplicate 1Password logins through the op CLI",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "analyse",
				Usage: "Scan a vault and write the duplicate report",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "vault",
						Usage:   "Vault to scan; empty scans every vault",
						Sources: cli.EnvVars("OP_VAULT"),
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Concurrent item fetches",
					},
					&cli.StringFlag{
						Name:  "schema",
						Usage: "Report layout: multi or exact",
					},
					reportFlag(),
				},
				Action: run(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.Analyse(ctx, opts...)
				}),
			},
			{
				Name:  "apply",
				Usage: "Apply the reviewed report (asks for dry-run first)",
				Flags: []cli.Flag{
					reportFlag(),
					&cli.BoolFlag{
						Name:  "allow-destructive",
						Usage: "Allow archive and delete actions",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Skip the prompt: dry-run or live",
					},
				},
				Action: run(func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error {
					switch mode := cmd.String("mode"); mode {
					case "":
					case "dry-run":
						opts = append(opts, internal.WithConfirmer(reconcile.Fixed(true)))
					case "live":
						opts = append(opts, internal.WithConfirmer(reconcile.Fixed(false)))
					default:
						return fmt.Errorf("unknown --mode %q: use dry-run or live", mode)
					}
					return internal.Apply(ctx, opts...)
				}),
			},
			{
				Name:  "plan",
				Usage: "Show what apply would do with the current report",
				Flags: []cli.Flag{
					reportFlag(),
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Re-print whenever the report is saved",
					},
				},
				Action: run(func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error {
					ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
					defer stop()
					return internal.Plan(ctx, cmd.Bool("watch"), opts...)
				}),
			},
			{
				Name:  "vaults",
				Usage: "List the vaults visible to the signed-in account",
				Action: run(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.Vaults(ctx, opts...)
				}),
			},
			{
				Name:      "history",
				Usage:     "List journal runs, or the actions of one run",
				ArgsUsage: "[RUN_ID]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list",
						Value: 20,
					},
				},
				Action: run(func(ctx context.Context, cmd *cli.Command, opts []internal.Option) error {
					return internal.History(ctx, cmd.Args().First(), int(cmd.Int("limit")), opts...)
				}),
			},
			{
				Name:  "serve",
				Usage: "Serve the read-only review API",
				Flags: []cli.Flag{reportFlag()},
				Action: run(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.Serve(ctx, opts...)
				}),
			},
			{
				Name:  "mcp",
				Usage: "Serve the review tools over MCP stdio",
				Flags: []cli.Flag{reportFlag()},
				Action: run(func(ctx context.Context, _ *cli.Command, opts []internal.Option) error {
					return internal.ServeMCP(ctx, opts...)
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
