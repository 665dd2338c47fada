// Package memory implements domain cache interfaces in process memory using
// ttlcache.
package memory

import (
	"context"
	"slices"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// Config sets the lifetime and size of cached explorer responses.
type Config struct {
	// OutspendsTTL is short: outspends change whenever an output is spent.
	OutspendsTTL time.Duration
	// TransactionTTL can be long once a transaction is confirmed.
	TransactionTTL time.Duration
	// Capacity bounds each cache. 0 means unbounded.
	Capacity uint64
}

// TxCache implements domain.TxCache with two ttlcache instances.
type TxCache struct {
	outspends *ttlcache.Cache[domain.Txid, []domain.Outspend]
	txs       *ttlcache.Cache[domain.Txid, domain.Transaction]
}

// NewTxCache creates a TxCache and starts its expiry loops. Call Close to
// stop them.
func NewTxCache(cfg Config) *TxCache {
	c := &TxCache{
		outspends: ttlcache.New[domain.Txid, []domain.Outspend](
			ttlcache.WithTTL[domain.Txid, []domain.Outspend](cfg.OutspendsTTL),
			ttlcache.WithCapacity[domain.Txid, []domain.Outspend](cfg.Capacity),
			ttlcache.WithDisableTouchOnHit[domain.Txid, []domain.Outspend](),
		),
		txs: ttlcache.New[domain.Txid, domain.Transaction](
			ttlcache.WithTTL[domain.Txid, domain.Transaction](cfg.TransactionTTL),
			ttlcache.WithCapacity[domain.Txid, domain.Transaction](cfg.Capacity),
			ttlcache.WithDisableTouchOnHit[domain.Txid, domain.Transaction](),
		),
	}
	go c.outspends.Start()
	go c.txs.Start()
	return c
}

// GetOutspends returns a copy of the cached outspends for txid.
func (c *TxCache) GetOutspends(_ context.Context, txid domain.Txid) ([]domain.Outspend, error) {
	item := c.outspends.Get(txid)
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return slices.Clone(item.Value()), nil
}

// SetOutspends stores a copy of outspends.
func (c *TxCache) SetOutspends(_ context.Context, txid domain.Txid, outspends []domain.Outspend) error {
	c.outspends.Set(txid, slices.Clone(outspends), ttlcache.DefaultTTL)
	return nil
}

// GetTransaction returns a copy of the cached transaction.
func (c *TxCache) GetTransaction(_ context.Context, txid domain.Txid) (*domain.Transaction, error) {
	item := c.txs.Get(txid)
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return cloneTx(item.Value()), nil
}

// SetTransaction stores a copy of tx keyed by its txid.
func (c *TxCache) SetTransaction(_ context.Context, tx *domain.Transaction) error {
	c.txs.Set(tx.Txid, *cloneTx(*tx), ttlcache.DefaultTTL)
	return nil
}

// Len reports the number of cached outspend lists and transactions.
func (c *TxCache) Len() (outspends, txs int) {
	return c.outspends.Len(), c.txs.Len()
}

// Close stops the expiry loops.
func (c *TxCache) Close() {
	c.outspends.Stop()
	c.txs.Stop()
}

func cloneTx(tx domain.Transaction) *domain.Transaction {
	tx.Inputs = slices.Clone(tx.Inputs)
	tx.Outputs = slices.Clone(tx.Outputs)
	return &tx
}

var _ domain.TxCache = (*TxCache)(nil)
