package domain

import (
	"context"
	"time"
)

// TxCache stores explorer responses. Getters return ErrNotFound on a miss.
type TxCache interface {
	GetOutspends(ctx context.Context, txid Txid) ([]Outspend, error)
	SetOutspends(ctx context.Context, txid Txid, outspends []Outspend) error
	GetTransaction(ctx context.Context, txid Txid) (*Transaction, error)
	SetTransaction(ctx context.Context, tx *Transaction) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter meters requests against a quota shared by every process using
// the same key.
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}
