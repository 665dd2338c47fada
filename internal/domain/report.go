package domain

import (
	"sort"
)

// OutputSlot is the value paid to one address by the CoinJoin, together with
// the output indexes that paid it. More than one index means the address was
// reused and Value is the sum over those outputs.
type OutputSlot struct {
	Value   Amount `json:"value"`
	Indexes []int  `json:"indexes"`
}

// OutputAddressMap maps each CoinJoin output address to what it received.
type OutputAddressMap map[Address]OutputSlot

// DuplicateMap maps a spending transaction to the number of CoinJoin outputs
// it consumed. Only counts of two or more are kept.
type DuplicateMap map[Txid]int

// Txids returns the keys in ascending order.
func (d DuplicateMap) Txids() []Txid {
	out := make([]Txid, 0, len(d))
	for txid := range d {
		out = append(out, txid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InputAddressMap maps a duplicate-flagged transaction to the addresses of
// its inputs in input order. Repeats are kept.
type InputAddressMap map[Txid][]Address

// MatchEntry is the linkage found for one spending transaction.
type MatchEntry struct {
	Addresses     map[Address]Amount `json:"addresses"`
	Total         Amount             `json:"total"`
	MatchedInputs int                `json:"matched_inputs"`
	OutspendCount int                `json:"outspend_count"`
	PartialMatch  bool               `json:"partial_match"`
}

// MatchReport is the result of analyzing one CoinJoin transaction. It holds
// no timestamps so that repeated runs over unchanged chain data encode to the
// same bytes.
type MatchReport struct {
	CoinJoin       Txid                `json:"coinjoin_txid"`
	SpentOutputs   int                 `json:"spent_outputs"`
	UnspentOutputs int                 `json:"unspent_outputs"`
	Matches        map[Txid]MatchEntry `json:"matches"`
	Diagnostics    []Diagnostic        `json:"diagnostics,omitempty"`
}

// Txids returns the spending transactions in the report in ascending order.
func (r *MatchReport) Txids() []Txid {
	out := make([]Txid, 0, len(r.Matches))
	for txid := range r.Matches {
		out = append(out, txid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LinkedValue is the sum of every entry total.
func (r *MatchReport) LinkedValue() Amount {
	var sum Amount
	for _, e := range r.Matches {
		sum += e.Total
	}
	return sum
}

// Links flattens the report into one row per matched address.
func (r *MatchReport) Links() []Link {
	var links []Link
	for _, txid := range r.Txids() {
		entry := r.Matches[txid]
		addrs := make([]Address, 0, len(entry.Addresses))
		for a := range entry.Addresses {
			addrs = append(addrs, a)
		}
		sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
		for _, a := range addrs {
			links = append(links, Link{
				CoinJoin: r.CoinJoin,
				Spender:  txid,
				Address:  a,
				Value:    entry.Addresses[a],
			})
		}
	}
	return links
}

// Link is one CoinJoin output address attributed to a spending transaction.
type Link struct {
	CoinJoin Txid    `json:"coinjoin_txid"`
	Spender  Txid    `json:"spending_txid"`
	Address  Address `json:"address"`
	Value    Amount  `json:"value"`
}

// DiagnosticKind classifies a non-fatal finding recorded during a run.
type DiagnosticKind string

const (
	DiagAddressUnresolved DiagnosticKind = "address_unresolved"
	DiagAddressReused     DiagnosticKind = "address_reused"
	DiagNetworkMismatch   DiagnosticKind = "address_network_mismatch"
	DiagNoLinks           DiagnosticKind = "no_links"
)

// Diagnostic records a skipped entry or other anomaly that did not stop the
// run.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Txid    Txid           `json:"txid,omitempty"`
	Side    Side           `json:"side,omitempty"`
	Index   int            `json:"index"`
	Address Address        `json:"address,omitempty"`
	Detail  string         `json:"detail,omitempty"`
}
