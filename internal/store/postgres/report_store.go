package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// ReportStore implements domain.ReportStore. The full report is kept as
// JSONB in coinjoin_reports; coinjoin_links holds one row per matched
// address for lookups by address.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore creates a ReportStore backed by the given pool.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Save replaces any stored report for the same CoinJoin.
func (s *ReportStore) Save(ctx context.Context, report *domain.MatchReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("postgres: marshal report %s: %w", report.CoinJoin, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save report: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const upsert = `
		INSERT INTO coinjoin_reports
			(coinjoin_txid, spent_outputs, unspent_outputs, linked_txs, linked_sats, report, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (coinjoin_txid) DO UPDATE SET
			spent_outputs   = EXCLUDED.spent_outputs,
			unspent_outputs = EXCLUDED.unspent_outputs,
			linked_txs      = EXCLUDED.linked_txs,
			linked_sats     = EXCLUDED.linked_sats,
			report          = EXCLUDED.report,
			analyzed_at     = EXCLUDED.analyzed_at`
	_, err = tx.Exec(ctx, upsert,
		string(report.CoinJoin),
		report.SpentOutputs,
		report.UnspentOutputs,
		len(report.Matches),
		int64(report.LinkedValue()),
		body,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert report %s: %w", report.CoinJoin, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM coinjoin_links WHERE coinjoin_txid = $1`, string(report.CoinJoin)); err != nil {
		return fmt.Errorf("postgres: clear links %s: %w", report.CoinJoin, err)
	}

	links := report.Links()
	if len(links) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"coinjoin_links"},
			[]string{"coinjoin_txid", "spending_txid", "address", "value_sats"},
			pgx.CopyFromSlice(len(links), func(i int) ([]any, error) {
				l := links[i]
				return []any{string(l.CoinJoin), string(l.Spender), string(l.Address), int64(l.Value)}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("postgres: copy links %s: %w", report.CoinJoin, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit report %s: %w", report.CoinJoin, err)
	}
	return nil
}

// Get returns the stored report or domain.ErrNotFound.
func (s *ReportStore) Get(ctx context.Context, coinjoin domain.Txid) (*domain.MatchReport, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM coinjoin_reports WHERE coinjoin_txid = $1`, string(coinjoin),
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get report %s: %w", coinjoin, err)
	}

	var report domain.MatchReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal report %s: %w", coinjoin, err)
	}
	return &report, nil
}

// LinksByAddress lists every stored link through addr, newest report first.
func (s *ReportStore) LinksByAddress(ctx context.Context, addr domain.Address, opts domain.ListOpts) ([]domain.Link, error) {
	query := `
		SELECT l.coinjoin_txid, l.spending_txid, l.address, l.value_sats
		FROM coinjoin_links l
		JOIN coinjoin_reports r USING (coinjoin_txid)
		WHERE l.address = $1`
	args := []any{string(addr)}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND r.analyzed_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND r.analyzed_at <= $%d", len(args))
	}
	query += " ORDER BY r.analyzed_at DESC, l.spending_txid"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: links for %s: %w", addr, err)
	}

	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Link, error) {
		var (
			l    domain.Link
			sats int64
		)
		if err := row.Scan(&l.CoinJoin, &l.Spender, &l.Address, &sats); err != nil {
			return l, err
		}
		l.Value = domain.Amount(sats)
		return l, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan links for %s: %w", addr, err)
	}
	return links, nil
}

// Compile-time interface check.
var _ domain.ReportStore = (*ReportStore)(nil)
