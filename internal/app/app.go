// Package app wires cjtrace's dependencies from configuration and runs the
// analyze and serve modes.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/alanyoungcy/cjtrace/internal/config"
	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// App is the root application object. It owns the configuration, the logger
// and the cleanup functions run on Close in reverse order.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	opts    []WireOption
	closers []func()
}

// New creates an App. Options reach Wire.
func New(cfg *config.Config, logger *slog.Logger, opts ...WireOption) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		opts:   opts,
	}
}

// Analyze runs one analysis of coinjoin, persists the report, and prints the
// summary to out when output.summary is set.
func (a *App) Analyze(ctx context.Context, coinjoin string, out io.Writer) (*domain.MatchReport, error) {
	txid, err := domain.ParseTxid(coinjoin)
	if err != nil {
		return nil, err
	}

	deps, err := a.wire(ctx)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeMode(ctx, deps, txid, out)
}

// Serve starts the HTTP API and blocks until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	deps, err := a.wire(ctx)
	if err != nil {
		return err
	}
	return a.ServeMode(ctx, deps)
}

func (a *App) wire(ctx context.Context) (*Dependencies, error) {
	a.logger.InfoContext(ctx, "wiring dependencies",
		slog.String("explorer", a.cfg.Explorer.BaseURL),
		slog.String("network", a.cfg.Analysis.Network),
	)
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger, a.opts...)
	if err != nil {
		return nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	return deps, nil
}

// Close releases resources in reverse order. Further calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
