package report

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

func sampleReport() *domain.MatchReport {
	return &domain.MatchReport{
		CoinJoin:       "cj",
		SpentOutputs:   3,
		UnspentOutputs: 1,
		Matches: map[domain.Txid]domain.MatchEntry{
			"a": {
				Addresses:     map[domain.Address]domain.Amount{"addr1": 10_000_000, "addr2": 10_000_000},
				Total:         20_000_000,
				MatchedInputs: 2,
				OutspendCount: 2,
			},
		},
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "abc_CoinJoin.txt", FileName("abc"))
}

func TestEncodeIsStable(t *testing.T) {
	a, err := Encode(sampleReport())
	require.NoError(t, err)
	b, err := Encode(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, string(a), `"total": 0.2`)

	back, err := Decode(bytes.NewReader(a))
	require.NoError(t, err)
	assert.Equal(t, sampleReport(), back)
}

func TestFileSinkWriteAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink := NewFileSink(dir)
	ctx := context.Background()

	_, err := sink.Load(ctx, "cj")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, sink.Write(ctx, sampleReport()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "cj_CoinJoin.txt", entries[0].Name())

	got, err := sink.Load(ctx, "cj")
	require.NoError(t, err)
	assert.Equal(t, sampleReport(), got)
}

func TestFileSinkOverwrites(t *testing.T) {
	sink := NewFileSink(t.TempDir())
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, sampleReport()))
	r := sampleReport()
	r.UnspentOutputs = 0
	require.NoError(t, sink.Write(ctx, r))

	got, err := sink.Load(ctx, "cj")
	require.NoError(t, err)
	assert.Zero(t, got.UnspentOutputs)
}

type memBlobs map[string][]byte

func (m memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	m[path] = b
	return err
}

func (m memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m memBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m[path]
	return ok, nil
}

func TestBlobSink(t *testing.T) {
	blobs := memBlobs{}
	sink := NewBlobSink(blobs, blobs, "reports")
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, sampleReport()))
	assert.Contains(t, blobs, "reports/cj_CoinJoin.txt")

	got, err := sink.Load(ctx, "cj")
	require.NoError(t, err)
	assert.Equal(t, sampleReport(), got)

	_, err = sink.Load(ctx, "other")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWriteSummary(t *testing.T) {
	r := sampleReport()
	r.Diagnostics = []domain.Diagnostic{{Kind: domain.DiagAddressReused, Detail: "outputs 0,2 pay the same address"}}

	var buf strings.Builder
	require.NoError(t, WriteSummary(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "Linked value")
	assert.Contains(t, out, "0.2 BTC")
	assert.Contains(t, out, "address_reused")
	assert.NotContains(t, out, "matched 2 inputs")
}
