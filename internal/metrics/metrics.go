// Package metrics holds the Prometheus collectors shared by the explorer
// client and the analysis pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExplorerRequests *prometheus.CounterVec
	ExplorerDuration *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	Runs             *prometheus.CounterVec
	LinkedTxs        prometheus.Histogram
	Diagnostics      *prometheus.CounterVec

	initOnce sync.Once
)

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	initOnce.Do(register)
}

func register() {
	ExplorerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cjtrace_explorer_requests_total",
			Help: "Number of block explorer requests",
		},
		[]string{
			"endpoint", // outspends or tx
			"result",   // ok, error, not_found
		},
	)
	ExplorerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cjtrace_explorer_request_seconds",
			Help:    "Latency of block explorer requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cjtrace_cache_lookups_total",
			Help: "Explorer response cache lookups",
		},
		[]string{"kind", "result"},
	)
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cjtrace_runs_total",
			Help: "Completed CoinJoin analyses by outcome",
		},
		[]string{"outcome"},
	)
	LinkedTxs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cjtrace_linked_transactions",
			Help:    "Spending transactions linked per analysis",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
	Diagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cjtrace_diagnostics_total",
			Help: "Non-fatal diagnostics recorded during analyses",
		},
		[]string{"kind"},
	)
}
