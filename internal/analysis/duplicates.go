package analysis

import "github.com/alanyoungcy/cjtrace/internal/domain"

// DetectDuplicates counts each txid in spent and keeps those seen more than
// once. A spender that appears once took a single CoinJoin output and says
// nothing about ownership.
func DetectDuplicates(spent []domain.Txid) domain.DuplicateMap {
	counts := make(map[domain.Txid]int, len(spent))
	for _, txid := range spent {
		counts[txid]++
	}

	dups := make(domain.DuplicateMap)
	for txid, n := range counts {
		if n > 1 {
			dups[txid] = n
		}
	}
	return dups
}
