// Package source composes explorer clients and caches into a domain.TxSource.
package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/cjtrace/internal/domain"
	"github.com/alanyoungcy/cjtrace/internal/metrics"
)

// Cached is a read-through domain.TxSource. Lookups go to each cache in
// order, then to the upstream source; upstream results are written back to
// every cache. Cache failures are logged and never fail a lookup.
type Cached struct {
	upstream domain.TxSource
	caches   []domain.TxCache
	group    singleflight.Group
	logger   *slog.Logger

	flightTimeout time.Duration
}

// defaultFlightTimeout bounds one shared upstream fetch.
const defaultFlightTimeout = 2 * time.Minute

// NewCached wraps upstream with the given caches, fastest first.
func NewCached(upstream domain.TxSource, logger *slog.Logger, caches ...domain.TxCache) *Cached {
	metrics.Init()
	return &Cached{
		upstream: upstream,
		caches:   caches,
		logger:   logger.With(slog.String("component", "tx_source")),

		flightTimeout: defaultFlightTimeout,
	}
}

// Outspends implements domain.TxSource.
func (c *Cached) Outspends(ctx context.Context, txid domain.Txid) ([]domain.Outspend, error) {
	for i, cache := range c.caches {
		outs, err := cache.GetOutspends(ctx, txid)
		if err == nil {
			c.hit("outspends")
			c.fillOutspends(ctx, c.caches[:i], txid, outs)
			return outs, nil
		}
		c.lookupFailed(ctx, "outspends", txid, err)
	}
	c.miss("outspends")

	v, err := c.shared(ctx, "outspends:"+string(txid), func(ctx context.Context) (any, error) {
		return c.upstream.Outspends(ctx, txid)
	})
	if err != nil {
		return nil, err
	}
	outs := v.([]domain.Outspend)
	c.fillOutspends(ctx, c.caches, txid, outs)
	return outs, nil
}

// Transaction implements domain.TxSource.
func (c *Cached) Transaction(ctx context.Context, txid domain.Txid) (*domain.Transaction, error) {
	for i, cache := range c.caches {
		tx, err := cache.GetTransaction(ctx, txid)
		if err == nil {
			c.hit("transaction")
			c.fillTransaction(ctx, c.caches[:i], tx)
			return tx, nil
		}
		c.lookupFailed(ctx, "transaction", txid, err)
	}
	c.miss("transaction")

	v, err := c.shared(ctx, "tx:"+string(txid), func(ctx context.Context) (any, error) {
		return c.upstream.Transaction(ctx, txid)
	})
	if err != nil {
		return nil, err
	}
	tx := v.(*domain.Transaction)
	c.fillTransaction(ctx, c.caches, tx)
	return tx, nil
}

// shared runs fetch once per key for all concurrent callers. The fetch is
// detached from any single caller's cancellation and bounded by
// flightTimeout instead; each caller still stops waiting when its own ctx is
// done.
func (c *Cached) shared(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
		defer cancel()
		return fetch(fctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *Cached) fillOutspends(ctx context.Context, caches []domain.TxCache, txid domain.Txid, outs []domain.Outspend) {
	for _, cache := range caches {
		if err := cache.SetOutspends(ctx, txid, outs); err != nil {
			c.logger.WarnContext(ctx, "cache write failed",
				slog.String("kind", "outspends"),
				slog.String("txid", string(txid)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Cached) fillTransaction(ctx context.Context, caches []domain.TxCache, tx *domain.Transaction) {
	for _, cache := range caches {
		if err := cache.SetTransaction(ctx, tx); err != nil {
			c.logger.WarnContext(ctx, "cache write failed",
				slog.String("kind", "transaction"),
				slog.String("txid", string(tx.Txid)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Cached) lookupFailed(ctx context.Context, kind string, txid domain.Txid, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	metrics.CacheLookups.WithLabelValues(kind, "error").Inc()
	c.logger.WarnContext(ctx, "cache read failed",
		slog.String("kind", kind),
		slog.String("txid", string(txid)),
		slog.String("error", err.Error()),
	)
}

func (c *Cached) hit(kind string) {
	metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
}

func (c *Cached) miss(kind string) {
	metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()
}

var _ domain.TxSource = (*Cached)(nil)
