package domain

import "context"

// TxSource is the read capability the analysis needs from a block explorer.
type TxSource interface {
	// Outspends returns one entry per output of txid, in output order.
	Outspends(ctx context.Context, txid Txid) ([]Outspend, error)
	// Transaction returns the inputs and outputs of txid.
	Transaction(ctx context.Context, txid Txid) (*Transaction, error)
}
