// Command cjtrace traces how the outputs of a CoinJoin transaction are spent
// one hop downstream and reports which outputs were merged by the same
// spender.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/alanyoungcy/cjtrace/internal/app"
	"github.com/alanyoungcy/cjtrace/internal/config"
)

func main() {
	cliApp := &cli.App{
		Name:  "cjtrace",
		Usage: "link CoinJoin outputs through their spending transactions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.toml",
				Usage:   "path to configuration file",
				EnvVars: []string{"CJTRACE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "analyze one CoinJoin transaction and write its report",
				ArgsUsage: "<txid>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out-dir",
						Usage: "directory for the report file (overrides output.dir)",
					},
				},
				Action: analyze,
			},
			{
				Name:   "serve",
				Usage:  "serve analyses and stored reports over HTTP",
				Action: serve,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func analyze(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: cjtrace analyze <txid>", 2)
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	if dir := c.String("out-dir"); dir != "" {
		cfg.Output.Dir = dir
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)
	defer application.Close()

	if _, err := application.Analyze(ctx, c.Args().First(), os.Stdout); err != nil {
		logger.Error("analysis failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)
	defer application.Close()

	if err := application.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("cjtrace stopped")
	return nil
}

// setup loads and validates the configuration and builds the JSON logger.
// Logs go to stderr so the analyze summary owns stdout.
func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	path := c.String("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Debug("configuration loaded",
		slog.String("path", path),
		slog.Any("config", config.RedactedConfig(cfg)),
	)
	return cfg, logger, nil
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
