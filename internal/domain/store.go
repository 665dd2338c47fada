package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ReportStore persists MatchReports and the links they contain.
type ReportStore interface {
	Save(ctx context.Context, report *MatchReport) error
	Get(ctx context.Context, coinjoin Txid) (*MatchReport, error)
	LinksByAddress(ctx context.Context, addr Address, opts ListOpts) ([]Link, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
