package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/cjtrace/internal/domain"
	"github.com/alanyoungcy/cjtrace/internal/metrics"
	"github.com/alanyoungcy/cjtrace/internal/notify"
	"github.com/alanyoungcy/cjtrace/internal/report"
)

// Analyzer builds a MatchReport for one CoinJoin.
type Analyzer interface {
	Analyze(ctx context.Context, coinjoin domain.Txid) (*domain.MatchReport, error)
}

// Notifier delivers run alerts.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event, title, message string) error
}

// sideEffectTimeout bounds the audit row and alert sent after a failed run.
const sideEffectTimeout = 10 * time.Second

// AnalysisService runs an analysis and persists its report. Everything but
// the analyzer is optional.
type AnalysisService struct {
	analyzer Analyzer
	lock     domain.LockManager
	lockTTL  time.Duration
	sinks    []report.Sink
	reports  domain.ReportStore
	audit    domain.AuditStore
	notifier Notifier
	logger   *slog.Logger
}

// AnalysisOption configures optional collaborators of an AnalysisService.
type AnalysisOption func(*AnalysisService)

// WithLock serializes runs of the same CoinJoin through lm.
func WithLock(lm domain.LockManager, ttl time.Duration) AnalysisOption {
	return func(s *AnalysisService) {
		s.lock = lm
		s.lockTTL = ttl
	}
}

// WithSinks writes every finished report to each sink in order, after the
// report store.
func WithSinks(sinks ...report.Sink) AnalysisOption {
	return func(s *AnalysisService) { s.sinks = append(s.sinks, sinks...) }
}

// WithReportStore saves finished reports to store.
func WithReportStore(store domain.ReportStore) AnalysisOption {
	return func(s *AnalysisService) { s.reports = store }
}

// WithAudit records one audit row per run.
func WithAudit(audit domain.AuditStore) AnalysisOption {
	return func(s *AnalysisService) { s.audit = audit }
}

// WithNotifier alerts on linked outputs and failed runs.
func WithNotifier(n Notifier) AnalysisOption {
	return func(s *AnalysisService) { s.notifier = n }
}

// NewAnalysisService creates an AnalysisService around analyzer.
func NewAnalysisService(analyzer Analyzer, logger *slog.Logger, opts ...AnalysisOption) *AnalysisService {
	metrics.Init()
	s := &AnalysisService{
		analyzer: analyzer,
		logger:   logger.With(slog.String("component", "analysis_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run analyzes coinjoin and persists the report to every configured sink and
// store. A report is returned only when all of them succeeded.
func (s *AnalysisService) Run(ctx context.Context, coinjoin domain.Txid) (*domain.MatchReport, error) {
	start := time.Now()

	if s.lock != nil {
		unlock, err := s.lock.Acquire(ctx, "analyze:"+string(coinjoin), s.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				metrics.Runs.WithLabelValues("locked").Inc()
			}
			return nil, fmt.Errorf("analysis_service: lock %s: %w", coinjoin.Short(), err)
		}
		defer unlock()
	}

	r, err := s.analyzer.Analyze(ctx, coinjoin)
	if err == nil {
		err = s.persist(ctx, r)
	}
	if err != nil {
		metrics.Runs.WithLabelValues("failed").Inc()
		s.recordFailure(ctx, coinjoin, err)
		return nil, err
	}

	metrics.Runs.WithLabelValues("success").Inc()
	s.recordSuccess(ctx, r, time.Since(start))
	return r, nil
}

// persist saves to the store first, then writes the sinks in order. Each
// artifact is atomic on its own; a later failure does not undo earlier ones.
func (s *AnalysisService) persist(ctx context.Context, r *domain.MatchReport) error {
	if s.reports != nil {
		if err := s.reports.Save(ctx, r); err != nil {
			return fmt.Errorf("analysis_service: save report: %w", err)
		}
	}
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, r); err != nil {
			return fmt.Errorf("analysis_service: write %s report: %w", sink.Name(), err)
		}
	}
	return nil
}

func (s *AnalysisService) recordSuccess(ctx context.Context, r *domain.MatchReport, elapsed time.Duration) {
	linked := len(r.Matches)
	s.logger.InfoContext(ctx, "analysis complete",
		slog.String("coinjoin", string(r.CoinJoin)),
		slog.Int("linked_txs", linked),
		slog.String("linked_value", r.LinkedValue().String()),
		slog.Int("diagnostics", len(r.Diagnostics)),
		slog.Duration("elapsed", elapsed),
	)

	s.auditLog(ctx, "analysis_completed", map[string]any{
		"coinjoin":        string(r.CoinJoin),
		"spent_outputs":   r.SpentOutputs,
		"unspent_outputs": r.UnspentOutputs,
		"linked_txs":      linked,
		"linked_value":    r.LinkedValue().String(),
	})

	if linked > 0 {
		s.notify(ctx, notify.EventLinksFound,
			fmt.Sprintf("CoinJoin %s: %d linked", r.CoinJoin.Short(), linked),
			linkMessage(r),
		)
	}
}

func (s *AnalysisService) recordFailure(ctx context.Context, coinjoin domain.Txid, runErr error) {
	// The run's ctx may be the reason it failed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	s.logger.ErrorContext(ctx, "analysis failed",
		slog.String("coinjoin", string(coinjoin)),
		slog.String("error", runErr.Error()),
	)
	s.auditLog(ctx, "analysis_failed", map[string]any{
		"coinjoin": string(coinjoin),
		"error":    runErr.Error(),
	})
	s.notify(ctx, notify.EventRunFailed,
		fmt.Sprintf("CoinJoin %s: analysis failed", coinjoin.Short()),
		runErr.Error(),
	)
}

func (s *AnalysisService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AnalysisService) notify(ctx context.Context, event notify.Event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", string(event)),
			slog.String("error", err.Error()),
		)
	}
}

func linkMessage(r *domain.MatchReport) string {
	var b strings.Builder
	for _, txid := range r.Txids() {
		entry := r.Matches[txid]
		fmt.Fprintf(&b, "%s: %d addresses, %s BTC", txid.Short(), len(entry.Addresses), entry.Total)
		if entry.PartialMatch {
			b.WriteString(" (partial)")
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}
