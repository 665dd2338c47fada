package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// TxCache implements domain.TxCache with JSON strings stored at
// "outspends:{txid}" and "tx:{txid}".
type TxCache struct {
	rdb            *redis.Client
	outspendsTTL   time.Duration
	transactionTTL time.Duration
}

// NewTxCache creates a TxCache backed by the given Client. A zero TTL keeps
// keys until evicted by Redis.
func NewTxCache(c *Client, outspendsTTL, transactionTTL time.Duration) *TxCache {
	return &TxCache{
		rdb:            c.Underlying(),
		outspendsTTL:   outspendsTTL,
		transactionTTL: transactionTTL,
	}
}

func outspendsKey(txid domain.Txid) string {
	return "outspends:" + string(txid)
}

func txKey(txid domain.Txid) string {
	return "tx:" + string(txid)
}

// GetOutspends returns the cached outspends for txid or domain.ErrNotFound.
func (tc *TxCache) GetOutspends(ctx context.Context, txid domain.Txid) ([]domain.Outspend, error) {
	var out []domain.Outspend
	if err := tc.get(ctx, outspendsKey(txid), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetOutspends stores outspends for txid.
func (tc *TxCache) SetOutspends(ctx context.Context, txid domain.Txid, outspends []domain.Outspend) error {
	return tc.set(ctx, outspendsKey(txid), outspends, tc.outspendsTTL)
}

// GetTransaction returns the cached transaction or domain.ErrNotFound.
func (tc *TxCache) GetTransaction(ctx context.Context, txid domain.Txid) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := tc.get(ctx, txKey(txid), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// SetTransaction stores tx under its txid.
func (tc *TxCache) SetTransaction(ctx context.Context, tx *domain.Transaction) error {
	return tc.set(ctx, txKey(tx.Txid), tx, tc.transactionTTL)
}

func (tc *TxCache) get(ctx context.Context, key string, v any) error {
	data, err := tc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("redis: unmarshal %s: %w", key, err)
	}
	return nil
}

func (tc *TxCache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	if err := tc.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.TxCache = (*TxCache)(nil)
