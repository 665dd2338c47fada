package analysis

import "github.com/alanyoungcy/cjtrace/internal/domain"

// Aggregate intersects each spending transaction's input addresses with the
// CoinJoin output addresses. Every key of inputs appears in the result, even
// when nothing matched.
//
// An address used by several inputs of the same spender is recorded once, so
// Total under-counts in that case. MatchedInputs keeps the per-input count so
// the gap is visible.
func Aggregate(outputs domain.OutputAddressMap, inputs domain.InputAddressMap) map[domain.Txid]domain.MatchEntry {
	matches := make(map[domain.Txid]domain.MatchEntry, len(inputs))

	for txid, addrs := range inputs {
		entry := domain.MatchEntry{Addresses: make(map[domain.Address]domain.Amount)}
		for _, addr := range addrs {
			slot, ok := outputs[addr]
			if !ok {
				continue
			}
			entry.Addresses[addr] = slot.Value
			entry.MatchedInputs++
		}
		for _, v := range entry.Addresses {
			entry.Total += v
		}
		matches[txid] = entry
	}

	return matches
}

// CompareSpendCounts records how many CoinJoin outputs each spender consumed
// according to the outspend data, and flags entries whose matched inputs
// disagree with it. A mismatch points at address reuse or at explorer data
// that changed between requests.
func CompareSpendCounts(matches map[domain.Txid]domain.MatchEntry, dups domain.DuplicateMap) {
	for txid, entry := range matches {
		entry.OutspendCount = dups[txid]
		entry.PartialMatch = entry.MatchedInputs != entry.OutspendCount
		matches[txid] = entry
	}
}
