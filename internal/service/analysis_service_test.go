package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/cjtrace/internal/domain"
	"github.com/alanyoungcy/cjtrace/internal/notify"
)

const coinjoin domain.Txid = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAnalyzer struct {
	report *domain.MatchReport
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, txid domain.Txid) (*domain.MatchReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.report
	r.CoinJoin = txid
	return &r, nil
}

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func (l *fakeLock) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released = append(l.released, key)
	}, nil
}

type fakeSink struct {
	name    string
	err     error
	written []domain.Txid
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Write(_ context.Context, r *domain.MatchReport) error {
	if s.err != nil {
		return s.err
	}
	s.written = append(s.written, r.CoinJoin)
	return nil
}

type fakeStore struct {
	err   error
	saved []*domain.MatchReport
}

func (s *fakeStore) Save(_ context.Context, r *domain.MatchReport) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, r)
	return nil
}

func (s *fakeStore) Get(context.Context, domain.Txid) (*domain.MatchReport, error) {
	return nil, domain.ErrNotFound
}

func (s *fakeStore) LinksByAddress(context.Context, domain.Address, domain.ListOpts) ([]domain.Link, error) {
	return nil, nil
}

type fakeAudit struct {
	events  []string
	ctxErrs []error
}

func (a *fakeAudit) Log(ctx context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	a.ctxErrs = append(a.ctxErrs, ctx.Err())
	return nil
}

func (a *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeNotifier struct {
	events   []notify.Event
	messages []string
	ctxErrs  []error
}

func (n *fakeNotifier) Notify(ctx context.Context, event notify.Event, _, message string) error {
	n.events = append(n.events, event)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	n.messages = append(n.messages, message)
	return errors.New("channel down")
}

func linkedReport() *domain.MatchReport {
	return &domain.MatchReport{
		SpentOutputs: 2,
		Matches: map[domain.Txid]domain.MatchEntry{
			"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa": {
				Addresses:     map[domain.Address]domain.Amount{"addr1": 10_000_000, "addr2": 10_000_000},
				Total:         20_000_000,
				MatchedInputs: 2,
				OutspendCount: 2,
			},
		},
	}
}

func TestRunPersistsEverywhere(t *testing.T) {
	analyzer := &fakeAnalyzer{report: linkedReport()}
	lock := &fakeLock{}
	file, blob := &fakeSink{name: "file"}, &fakeSink{name: "blob"}
	store, audit, notifier := &fakeStore{}, &fakeAudit{}, &fakeNotifier{}

	svc := NewAnalysisService(analyzer, discardLogger(),
		WithLock(lock, time.Minute),
		WithSinks(file, blob),
		WithReportStore(store),
		WithAudit(audit),
		WithNotifier(notifier),
	)

	r, err := svc.Run(context.Background(), coinjoin)
	require.NoError(t, err, "a failing notifier does not fail the run")
	assert.Equal(t, coinjoin, r.CoinJoin)

	assert.Equal(t, []domain.Txid{coinjoin}, file.written)
	assert.Equal(t, []domain.Txid{coinjoin}, blob.written)
	require.Len(t, store.saved, 1)
	assert.Equal(t, []string{"analysis_completed"}, audit.events)
	assert.Equal(t, []notify.Event{notify.EventLinksFound}, notifier.events)
	assert.Contains(t, notifier.messages[0], "0.2 BTC")
	assert.Equal(t, []string{"analyze:" + string(coinjoin)}, lock.released)
}

func TestRunWithoutLinksStaysQuiet(t *testing.T) {
	analyzer := &fakeAnalyzer{report: &domain.MatchReport{Matches: map[domain.Txid]domain.MatchEntry{}}}
	notifier := &fakeNotifier{}

	_, err := NewAnalysisService(analyzer, discardLogger(), WithNotifier(notifier)).Run(context.Background(), coinjoin)
	require.NoError(t, err)
	assert.Empty(t, notifier.events)
}

func TestRunAnalyzeFailure(t *testing.T) {
	fetchErr := &domain.DataSourceError{Stage: domain.StageOutspends, Txid: coinjoin, Err: domain.ErrRateLimited}
	analyzer := &fakeAnalyzer{err: fetchErr}
	file := &fakeSink{name: "file"}
	audit, notifier := &fakeAudit{}, &fakeNotifier{}

	svc := NewAnalysisService(analyzer, discardLogger(), WithSinks(file), WithAudit(audit), WithNotifier(notifier))
	r, err := svc.Run(context.Background(), coinjoin)
	require.Error(t, err)
	assert.Nil(t, r)

	var dsErr *domain.DataSourceError
	assert.ErrorAs(t, err, &dsErr)
	assert.Empty(t, file.written, "no artifact after a failed run")
	assert.Equal(t, []string{"analysis_failed"}, audit.events)
	assert.Equal(t, []notify.Event{notify.EventRunFailed}, notifier.events)
}

func TestRunSinkFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{report: linkedReport()}
	broken := &fakeSink{name: "blob", err: errors.New("bucket gone")}
	file := &fakeSink{name: "file"}

	svc := NewAnalysisService(analyzer, discardLogger(), WithSinks(broken, file))
	_, err := svc.Run(context.Background(), coinjoin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write blob report")
	assert.Empty(t, file.written, "later sinks are skipped")
}

func TestRunStoreFailureWritesNoArtifact(t *testing.T) {
	analyzer := &fakeAnalyzer{report: linkedReport()}
	file := &fakeSink{name: "file"}
	store := &fakeStore{err: errors.New("connection reset")}

	svc := NewAnalysisService(analyzer, discardLogger(), WithReportStore(store), WithSinks(file))
	_, err := svc.Run(context.Background(), coinjoin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save report")
	assert.Empty(t, file.written)
}

func TestRunTimeoutStillAuditedAndAnnounced(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	analyzer := &fakeAnalyzer{err: ctx.Err()}
	audit, notifier := &fakeAudit{}, &fakeNotifier{}

	svc := NewAnalysisService(analyzer, discardLogger(), WithAudit(audit), WithNotifier(notifier))
	_, err := svc.Run(ctx, coinjoin)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, []string{"analysis_failed"}, audit.events)
	assert.Equal(t, []error{nil}, audit.ctxErrs)
	assert.Equal(t, []notify.Event{notify.EventRunFailed}, notifier.events)
	assert.Equal(t, []error{nil}, notifier.ctxErrs)
}

func TestRunLockHeld(t *testing.T) {
	analyzer := &fakeAnalyzer{report: linkedReport()}
	lock := &fakeLock{held: map[string]bool{"analyze:" + string(coinjoin): true}}

	_, err := NewAnalysisService(analyzer, discardLogger(), WithLock(lock, time.Minute)).Run(context.Background(), coinjoin)
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Zero(t, analyzer.calls)
}
