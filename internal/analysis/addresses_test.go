package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

const (
	mainnetAddr = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	testnetAddr = "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"
)

func TestOutputAddresses(t *testing.T) {
	src := newMemSource()
	cj := txid('c')
	src.pays(cj, out("addr1", "0.1"), out("addr2", "0.1"), out("addr3", "0.1"))

	outputs, diags, err := NewAddressRecoverer(src, 1, 0, nil).OutputAddresses(context.Background(), cj)
	require.NoError(t, err)
	assert.Empty(t, diags)

	require.Len(t, outputs, 3)
	assert.Equal(t, domain.OutputSlot{Value: btc("0.1"), Indexes: []int{1}}, outputs["addr2"])
}

func TestOutputAddressesCollisionIsSummed(t *testing.T) {
	src := newMemSource()
	cj := txid('c')
	src.pays(cj, out("addr1", "0.1"), out("addr2", "0.1"), out("addr1", "0.05"))

	outputs, diags, err := NewAddressRecoverer(src, 1, 0, nil).OutputAddresses(context.Background(), cj)
	require.NoError(t, err)

	assert.Equal(t, domain.OutputSlot{Value: btc("0.15"), Indexes: []int{0, 2}}, outputs["addr1"])
	require.Len(t, diags, 1)
	assert.Equal(t, domain.DiagAddressReused, diags[0].Kind)
	assert.Equal(t, domain.Address("addr1"), diags[0].Address)
	assert.Contains(t, diags[0].Detail, "0,2")
}

func TestOutputAddressesSkipsMissingAddress(t *testing.T) {
	src := newMemSource()
	cj := txid('c')
	src.pays(cj, out("addr1", "0.1"), out("", "0"), out("addr2", "0.1"))

	outputs, diags, err := NewAddressRecoverer(src, 1, 0, nil).OutputAddresses(context.Background(), cj)
	require.NoError(t, err)

	assert.Len(t, outputs, 2)
	require.Len(t, diags, 1)
	assert.Equal(t, domain.DiagAddressUnresolved, diags[0].Kind)
	assert.Equal(t, domain.SideOutput, diags[0].Side)
	assert.Equal(t, 1, diags[0].Index)
}

func TestOutputAddressesSourceError(t *testing.T) {
	src := newMemSource()
	cj := txid('c')
	src.fail[cj] = errors.New("timeout")

	_, _, err := NewAddressRecoverer(src, 1, 0, nil).OutputAddresses(context.Background(), cj)
	var dse *domain.DataSourceError
	require.ErrorAs(t, err, &dse)
	assert.Equal(t, domain.StageOutputs, dse.Stage)
}

func TestInputAddresses(t *testing.T) {
	src := newMemSource()
	a, b := txid('a'), txid('b')
	src.spendsFrom(a, "addr1", "addr2", "addr1", "addrX")
	src.spendsFrom(b, "addr3", "", "addr4")

	inputs, diags, err := NewAddressRecoverer(src, 1, 0, nil).
		InputAddresses(context.Background(), domain.DuplicateMap{a: 2, b: 2})
	require.NoError(t, err)

	assert.Equal(t, []domain.Address{"addr1", "addr2", "addr1", "addrX"}, inputs[a])
	assert.Equal(t, []domain.Address{"addr3", "addr4"}, inputs[b])

	require.Len(t, diags, 1)
	assert.Equal(t, domain.DiagAddressUnresolved, diags[0].Kind)
	assert.Equal(t, b, diags[0].Txid)
	assert.Equal(t, domain.SideInput, diags[0].Side)
	assert.Equal(t, 1, diags[0].Index)
}

func TestInputAddressesConcurrentMatchesSerial(t *testing.T) {
	src := newMemSource()
	dups := make(domain.DuplicateMap)
	for _, c := range []byte("abcdef0123456789") {
		id := txid(c)
		src.spendsFrom(id, domain.Address("in-"+string(c)), "", domain.Address("in2-"+string(c)))
		dups[id] = 2
	}

	serialIn, serialDiags, err := NewAddressRecoverer(src, 1, 0, nil).InputAddresses(context.Background(), dups)
	require.NoError(t, err)
	parIn, parDiags, err := NewAddressRecoverer(src, 8, 0, nil).InputAddresses(context.Background(), dups)
	require.NoError(t, err)

	assert.Equal(t, serialIn, parIn)
	assert.Equal(t, serialDiags, parDiags)
}

func TestInputAddressesFetchLimit(t *testing.T) {
	src := newMemSource()
	dups := domain.DuplicateMap{txid('a'): 2, txid('b'): 2, txid('d'): 3}

	_, _, err := NewAddressRecoverer(src, 1, 2, nil).InputAddresses(context.Background(), dups)
	assert.ErrorIs(t, err, domain.ErrFetchLimit)
	assert.Empty(t, src.calls)
}

func TestInputAddressesFetchErrorIsFatal(t *testing.T) {
	src := newMemSource()
	a, b := txid('a'), txid('b')
	src.spendsFrom(a, "addr1", "addr2")
	src.fail[b] = errors.New("503")

	_, _, err := NewAddressRecoverer(src, 2, 0, nil).
		InputAddresses(context.Background(), domain.DuplicateMap{a: 2, b: 2})
	var dse *domain.DataSourceError
	require.ErrorAs(t, err, &dse)
	assert.Equal(t, domain.StageInputs, dse.Stage)
	assert.Equal(t, b, dse.Txid)
}

func TestAddressNetworkCheck(t *testing.T) {
	src := newMemSource()
	cj := txid('c')
	src.pays(cj, out(mainnetAddr, "0.1"), out(testnetAddr, "0.1"), out("garbage", "0.1"))

	outputs, diags, err := NewAddressRecoverer(src, 1, 0, &chaincfg.MainNetParams).
		OutputAddresses(context.Background(), cj)
	require.NoError(t, err)

	// Mismatches are reported but the addresses stay in the map.
	assert.Len(t, outputs, 3)
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, domain.DiagNetworkMismatch, d.Kind)
		assert.NotEqual(t, domain.Address(mainnetAddr), d.Address)
	}
}

type countingSource struct {
	domain.TxSource
	inflight, peak atomic.Int32
}

func (c *countingSource) Transaction(ctx context.Context, id domain.Txid) (*domain.Transaction, error) {
	n := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return c.TxSource.Transaction(ctx, id)
}

func TestInputAddressesSerialByDefault(t *testing.T) {
	mem := newMemSource()
	dups := make(domain.DuplicateMap)
	for _, c := range []byte("abcdef") {
		mem.spendsFrom(txid(c), "x")
		dups[txid(c)] = 2
	}
	src := &countingSource{TxSource: mem}

	_, _, err := NewAddressRecoverer(src, 0, 0, nil).InputAddresses(context.Background(), dups)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.peak.Load())
}
