package analysis

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/alanyoungcy/cjtrace/internal/domain"
	"github.com/alanyoungcy/cjtrace/internal/metrics"
)

// Options tunes the fetch side of an analysis.
type Options struct {
	// FetchConcurrency bounds parallel spender fetches. 1 is serial.
	FetchConcurrency int
	// MaxFetches caps spender fetches per run. 0 disables the cap.
	MaxFetches int
	// Network enables address decoding checks when non-nil.
	Network *chaincfg.Params
}

// Analyzer runs the full linkage pipeline for one CoinJoin transaction.
type Analyzer struct {
	resolver  *OutspendResolver
	recoverer *AddressRecoverer
	logger    *slog.Logger
}

// NewAnalyzer creates an Analyzer reading from source.
func NewAnalyzer(source domain.TxSource, opts Options, logger *slog.Logger) *Analyzer {
	metrics.Init()
	return &Analyzer{
		resolver:  NewOutspendResolver(source),
		recoverer: NewAddressRecoverer(source, opts.FetchConcurrency, opts.MaxFetches, opts.Network),
		logger:    logger.With(slog.String("component", "analyzer")),
	}
}

// Analyze builds the MatchReport for txid. Fetch failures abort the run and
// no report is returned; unresolvable addresses are skipped and listed in
// the report's diagnostics.
func (a *Analyzer) Analyze(ctx context.Context, txid domain.Txid) (*domain.MatchReport, error) {
	logger := a.logger.With(slog.String("coinjoin", string(txid)))

	spent, unspent, err := a.resolver.Resolve(ctx, txid)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "resolved outspends",
		slog.Int("spent", len(spent)),
		slog.Int("unspent", unspent),
	)

	report := &domain.MatchReport{
		CoinJoin:       txid,
		SpentOutputs:   len(spent),
		UnspentOutputs: unspent,
		Matches:        make(map[domain.Txid]domain.MatchEntry),
	}

	dups := DetectDuplicates(spent)
	if len(dups) == 0 {
		logger.InfoContext(ctx, "no spending transaction consumed more than one output")
		report.Diagnostics = append(report.Diagnostics, domain.Diagnostic{
			Kind:   domain.DiagNoLinks,
			Txid:   txid,
			Detail: "no spending transaction consumed more than one CoinJoin output",
		})
		a.observe(report)
		return report, nil
	}
	logger.InfoContext(ctx, "found multi-output spenders", slog.Int("count", len(dups)))

	outputs, diags, err := a.recoverer.OutputAddresses(ctx, txid)
	if err != nil {
		return nil, err
	}
	report.Diagnostics = append(report.Diagnostics, diags...)

	inputs, diags, err := a.recoverer.InputAddresses(ctx, dups)
	if err != nil {
		return nil, err
	}
	report.Diagnostics = append(report.Diagnostics, diags...)

	report.Matches = Aggregate(outputs, inputs)
	CompareSpendCounts(report.Matches, dups)

	for _, spender := range report.Txids() {
		entry := report.Matches[spender]
		logger.DebugContext(ctx, "matched spender",
			slog.String("spender", string(spender)),
			slog.Int("addresses", len(entry.Addresses)),
			slog.String("total", entry.Total.String()),
			slog.Bool("partial", entry.PartialMatch),
		)
	}
	for _, d := range report.Diagnostics {
		logger.WarnContext(ctx, "diagnostic",
			slog.String("kind", string(d.Kind)),
			slog.String("txid", string(d.Txid)),
			slog.String("detail", d.Detail),
		)
	}

	a.observe(report)
	return report, nil
}

func (a *Analyzer) observe(report *domain.MatchReport) {
	metrics.LinkedTxs.Observe(float64(len(report.Matches)))
	for _, d := range report.Diagnostics {
		metrics.Diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}
}
