package analysis

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// OutspendResolver lists the transactions that spent a transaction's outputs.
type OutspendResolver struct {
	source domain.TxSource
}

// NewOutspendResolver creates a resolver reading from source.
func NewOutspendResolver(source domain.TxSource) *OutspendResolver {
	return &OutspendResolver{source: source}
}

// Resolve returns the spending txid of every spent output of txid in output
// index order, and the number of outputs that are still unspent. Any
// failure is a *domain.DataSourceError: without the outspend topology there
// is nothing to analyze.
func (r *OutspendResolver) Resolve(ctx context.Context, txid domain.Txid) ([]domain.Txid, int, error) {
	outspends, err := r.source.Outspends(ctx, txid)
	if err != nil {
		return nil, 0, &domain.DataSourceError{Stage: domain.StageOutspends, Txid: txid, Err: err}
	}

	spent := make([]domain.Txid, 0, len(outspends))
	unspent := 0
	for i, o := range outspends {
		if !o.Spent {
			unspent++
			continue
		}
		if o.Txid == "" {
			return nil, 0, &domain.DataSourceError{
				Stage: domain.StageOutspends,
				Txid:  txid,
				Err:   fmt.Errorf("%w: output %d spent without a spending txid", domain.ErrMalformedResponse, i),
			}
		}
		spent = append(spent, o.Txid)
	}

	return spent, unspent, nil
}
