package report

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// BlobSink archives reports in object storage under prefix.
type BlobSink struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	prefix string
}

// NewBlobSink creates a BlobSink. reader may be nil when Load is not needed.
func NewBlobSink(writer domain.BlobWriter, reader domain.BlobReader, prefix string) *BlobSink {
	return &BlobSink{writer: writer, reader: reader, prefix: prefix}
}

// Key returns the object key for coinjoin.
func (s *BlobSink) Key(coinjoin domain.Txid) string {
	return path.Join(s.prefix, FileName(coinjoin))
}

// Name returns "blob".
func (s *BlobSink) Name() string { return "blob" }

// Write uploads the encoded report.
func (s *BlobSink) Write(ctx context.Context, r *domain.MatchReport) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	if err := s.writer.Put(ctx, s.Key(r.CoinJoin), bytes.NewReader(data), ContentType); err != nil {
		return fmt.Errorf("report: upload %s: %w", r.CoinJoin, err)
	}
	return nil
}

// Load downloads and decodes the archived report.
func (s *BlobSink) Load(ctx context.Context, coinjoin domain.Txid) (*domain.MatchReport, error) {
	if s.reader == nil {
		return nil, domain.ErrNotFound
	}
	body, err := s.reader.Get(ctx, s.Key(coinjoin))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return Decode(body)
}
