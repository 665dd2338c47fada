// Package analysis links the outputs of a CoinJoin transaction through the
// common-input-ownership heuristic: when a single downstream transaction
// spends two or more CoinJoin outputs, those outputs most likely belong to
// the same participant.
//
// The pipeline runs strictly forward:
//
//	CoinJoin txid -> outspends -> duplicate spenders -> (output map, input lists) -> matches
//
// Only the first and third steps talk to the explorer; detection and
// aggregation are pure functions over already-fetched data.
package analysis
