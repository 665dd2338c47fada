package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/cjtrace/internal/domain"
	"github.com/alanyoungcy/cjtrace/internal/report"
	"github.com/alanyoungcy/cjtrace/internal/server"
	"github.com/alanyoungcy/cjtrace/internal/server/handler"
	"github.com/alanyoungcy/cjtrace/internal/service"
)

// newAnalysisService builds the run service from deps.
func (a *App) newAnalysisService(deps *Dependencies) *service.AnalysisService {
	opts := []service.AnalysisOption{
		service.WithSinks(deps.Sinks...),
		service.WithNotifier(deps.Notifier),
	}
	if deps.LockManager != nil {
		opts = append(opts, service.WithLock(deps.LockManager, a.cfg.Redis.LockTTL.Duration))
	}
	if deps.ReportStore != nil {
		opts = append(opts, service.WithReportStore(deps.ReportStore))
	}
	if deps.AuditStore != nil {
		opts = append(opts, service.WithAudit(deps.AuditStore))
	}
	return service.NewAnalysisService(deps.Analyzer, a.logger, opts...)
}

// AnalyzeMode runs a single analysis and writes the console summary to out.
func (a *App) AnalyzeMode(ctx context.Context, deps *Dependencies, coinjoin domain.Txid, out io.Writer) (*domain.MatchReport, error) {
	a.logger.InfoContext(ctx, "starting analyze mode", slog.String("coinjoin", string(coinjoin)))

	r, err := a.newAnalysisService(deps).Run(ctx, coinjoin)
	if err != nil {
		return nil, err
	}

	if a.cfg.Output.Summary && out != nil {
		if err := report.WriteSummary(out, r); err != nil {
			return r, fmt.Errorf("app: write summary: %w", err)
		}
	}
	return r, nil
}

// ServeMode starts the HTTP API and blocks until ctx is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode", slog.Int("port", a.cfg.Server.Port))

	var links handler.LinkLister
	if deps.ReportStore != nil {
		links = deps.ReportStore
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateBurst:   a.cfg.Server.RateBurst,
		TrustProxy:  a.cfg.Server.TrustProxy,
		MetricsPath: metricsPath,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Health, a.logger),
		Analyze: handler.NewAnalyzeHandler(a.newAnalysisService(deps), a.cfg.Server.AnalyzeTimeout.Duration, a.logger),
		Reports: handler.NewReportHandler(chainLoader(deps.Loaders), links, a.logger),
	}, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// chainLoader tries each loader in turn and returns the first report found.
type chainLoader []report.Loader

func (c chainLoader) Load(ctx context.Context, coinjoin domain.Txid) (*domain.MatchReport, error) {
	for _, l := range c {
		r, err := l.Load(ctx, coinjoin)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("report %s: %w", coinjoin, domain.ErrNotFound)
}
