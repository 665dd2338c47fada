package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// FileSink writes reports into a local directory.
type FileSink struct {
	dir string
}

// NewFileSink creates a FileSink rooted at dir. The directory is created on
// first write.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Path returns where the report for coinjoin lives.
func (s *FileSink) Path(coinjoin domain.Txid) string {
	return filepath.Join(s.dir, FileName(coinjoin))
}

// Name returns "file".
func (s *FileSink) Name() string { return "file" }

// Write stores r through a temp file and a rename, so readers never see a
// partial report and a failed write leaves any previous report in place.
func (s *FileSink) Write(_ context.Context, r *domain.MatchReport) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("report: create dir %s: %w", s.dir, err)
	}

	target := s.Path(r.CoinJoin)
	tmp, err := os.CreateTemp(s.dir, FileName(r.CoinJoin)+".*.tmp")
	if err != nil {
		return fmt.Errorf("report: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("report: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("report: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("report: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("report: rename to %s: %w", target, err)
	}
	return nil
}

// Load reads the report for coinjoin from disk.
func (s *FileSink) Load(_ context.Context, coinjoin domain.Txid) (*domain.MatchReport, error) {
	f, err := os.Open(s.Path(coinjoin))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("report: open: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
