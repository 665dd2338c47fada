package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

func outputMap(pairs ...any) domain.OutputAddressMap {
	m := make(domain.OutputAddressMap)
	for i := 0; i < len(pairs); i += 2 {
		addr := domain.Address(pairs[i].(string))
		slot := m[addr]
		slot.Value += btc(pairs[i+1].(string))
		slot.Indexes = append(slot.Indexes, i/2)
		m[addr] = slot
	}
	return m
}

func TestAggregate(t *testing.T) {
	outputs := outputMap("addr1", "0.1", "addr2", "0.1", "addr3", "0.1")
	inputs := domain.InputAddressMap{"A": {"addr1", "addr2", "addrX"}}

	matches := Aggregate(outputs, inputs)
	require.Contains(t, matches, domain.Txid("A"))

	entry := matches["A"]
	assert.Equal(t, map[domain.Address]domain.Amount{"addr1": btc("0.1"), "addr2": btc("0.1")}, entry.Addresses)
	assert.Equal(t, "0.2", entry.Total.String())
	assert.Equal(t, 2, entry.MatchedInputs)
	assert.NotContains(t, entry.Addresses, domain.Address("addrX"))
}

func TestAggregateKeepsEmptyEntries(t *testing.T) {
	outputs := outputMap("addr1", "0.1")
	inputs := domain.InputAddressMap{"A": {"other1", "other2"}, "B": nil}

	matches := Aggregate(outputs, inputs)
	require.Len(t, matches, 2)
	for _, txid := range []domain.Txid{"A", "B"} {
		assert.Empty(t, matches[txid].Addresses)
		assert.NotNil(t, matches[txid].Addresses)
		assert.Zero(t, matches[txid].Total)
	}
}

// A spender using the same CoinJoin address twice is only counted once in
// the address map; MatchedInputs exposes the difference.
func TestAggregateRepeatedInputAddressUnderCounts(t *testing.T) {
	outputs := outputMap("addr1", "0.1", "addr2", "0.1")
	inputs := domain.InputAddressMap{"A": {"addr1", "addr1", "addr2"}}

	entry := Aggregate(outputs, inputs)["A"]
	assert.Len(t, entry.Addresses, 2)
	assert.Equal(t, "0.2", entry.Total.String())
	assert.Equal(t, 3, entry.MatchedInputs)

	matches := map[domain.Txid]domain.MatchEntry{"A": entry}
	CompareSpendCounts(matches, domain.DuplicateMap{"A": 3})
	assert.False(t, matches["A"].PartialMatch)
	assert.Equal(t, 3, matches["A"].OutspendCount)
}

func TestAggregateFreshEntryPerTransaction(t *testing.T) {
	outputs := outputMap("addr1", "0.1", "addr2", "0.2")
	inputs := domain.InputAddressMap{
		"A": {"addr1"},
		"B": {"addr2"},
	}

	matches := Aggregate(outputs, inputs)
	assert.Equal(t, map[domain.Address]domain.Amount{"addr1": btc("0.1")}, matches["A"].Addresses)
	assert.Equal(t, map[domain.Address]domain.Amount{"addr2": btc("0.2")}, matches["B"].Addresses)
}

func TestAggregateTotalIsExact(t *testing.T) {
	outputs := make(domain.OutputAddressMap)
	var addrs []domain.Address
	for i := 0; i < 1000; i++ {
		a := domain.Address(fmt.Sprintf("addr%d", i))
		outputs[a] = domain.OutputSlot{Value: btc("0.00000001"), Indexes: []int{i}}
		addrs = append(addrs, a)
	}

	entry := Aggregate(outputs, domain.InputAddressMap{"A": addrs})["A"]
	assert.Equal(t, "0.00001", entry.Total.String())

	var sum domain.Amount
	for _, v := range entry.Addresses {
		sum += v
	}
	assert.Equal(t, sum, entry.Total)
}

func TestAggregateReferentialIntegrity(t *testing.T) {
	outputs := outputMap("a1", "1", "a2", "2", "a3", "3")
	dups := domain.DuplicateMap{"T1": 2, "T2": 3}
	inputs := domain.InputAddressMap{
		"T1": {"a1", "a2", "zz"},
		"T2": {"a3", "yy"},
	}

	matches := Aggregate(outputs, inputs)
	for txid, entry := range matches {
		assert.Contains(t, dups, txid)
		for addr := range entry.Addresses {
			assert.Contains(t, outputs, addr)
			assert.Contains(t, inputs[txid], addr)
		}
	}
}

func TestCompareSpendCounts(t *testing.T) {
	matches := map[domain.Txid]domain.MatchEntry{
		"A": {Addresses: map[domain.Address]domain.Amount{"a1": 1, "a2": 1}, Total: 2, MatchedInputs: 2},
		"B": {Addresses: map[domain.Address]domain.Amount{"a3": 1}, Total: 1, MatchedInputs: 1},
	}

	CompareSpendCounts(matches, domain.DuplicateMap{"A": 2, "B": 2})

	assert.False(t, matches["A"].PartialMatch)
	assert.Equal(t, 2, matches["A"].OutspendCount)
	assert.True(t, matches["B"].PartialMatch)
}
