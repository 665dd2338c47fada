// Package report encodes MatchReports and writes them to their artifact
// destinations.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// ContentType of an encoded report. The artifact keeps its historical .txt
// suffix but holds JSON.
const ContentType = "application/json"

// FileName is the artifact name for a CoinJoin: "<txid>_CoinJoin.txt".
func FileName(coinjoin domain.Txid) string {
	return string(coinjoin) + "_CoinJoin.txt"
}

// Encode returns the indented JSON encoding of r followed by a newline.
// Map keys are sorted by encoding/json, so equal reports encode to equal
// bytes.
func Encode(r *domain.MatchReport) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("report: encode %s: %w", r.CoinJoin, err)
	}
	return buf.Bytes(), nil
}

// Decode parses an encoded report.
func Decode(rd io.Reader) (*domain.MatchReport, error) {
	var r domain.MatchReport
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("report: decode: %w", err)
	}
	if r.Matches == nil {
		r.Matches = make(map[domain.Txid]domain.MatchEntry)
	}
	return &r, nil
}

// Sink persists a finished report.
type Sink interface {
	Write(ctx context.Context, r *domain.MatchReport) error
	Name() string
}

// Loader reads a previously written report. It returns domain.ErrNotFound
// when there is none.
type Loader interface {
	Load(ctx context.Context, coinjoin domain.Txid) (*domain.MatchReport, error)
}
