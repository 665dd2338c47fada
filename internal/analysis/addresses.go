package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// AddressRecoverer extracts address/value data from transaction detail.
type AddressRecoverer struct {
	source      domain.TxSource
	concurrency int
	maxFetches  int
	network     *chaincfg.Params
}

// NewAddressRecoverer creates a recoverer. concurrency bounds parallel input
// fetches (values below 1 mean serial). maxFetches caps how many spending
// transactions a single call may fetch (0 means no cap). A non-nil network
// enables a check that every address decodes for that chain.
func NewAddressRecoverer(source domain.TxSource, concurrency, maxFetches int, network *chaincfg.Params) *AddressRecoverer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AddressRecoverer{
		source:      source,
		concurrency: concurrency,
		maxFetches:  maxFetches,
		network:     network,
	}
}

// OutputAddresses maps every output address of txid to the value it
// received. Outputs without an address are skipped and reported. When an
// address receives several outputs, their values are summed and the
// collision is reported as an address_reused diagnostic.
func (ar *AddressRecoverer) OutputAddresses(ctx context.Context, txid domain.Txid) (domain.OutputAddressMap, []domain.Diagnostic, error) {
	tx, err := ar.source.Transaction(ctx, txid)
	if err != nil {
		return nil, nil, &domain.DataSourceError{Stage: domain.StageOutputs, Txid: txid, Err: err}
	}

	var diags []domain.Diagnostic
	outputs := make(domain.OutputAddressMap, len(tx.Outputs))

	for i, out := range tx.Outputs {
		if out.Address == "" {
			rerr := &domain.AddressResolutionError{Txid: txid, Side: domain.SideOutput, Index: i}
			diags = append(diags, rerr.Diagnostic())
			continue
		}
		if d, ok := ar.checkNetwork(txid, domain.SideOutput, i, out.Address); !ok {
			diags = append(diags, d)
		}

		slot := outputs[out.Address]
		slot.Value += out.Value
		slot.Indexes = append(slot.Indexes, i)
		outputs[out.Address] = slot
	}

	diags = append(diags, reusedAddressDiagnostics(txid, outputs)...)
	return outputs, diags, nil
}

// InputAddresses fetches every transaction in dups and lists the previous
// output address of each input, in input order and with repeats. Inputs
// whose address cannot be resolved are skipped and reported; the rest of
// that transaction is still analyzed.
func (ar *AddressRecoverer) InputAddresses(ctx context.Context, dups domain.DuplicateMap) (domain.InputAddressMap, []domain.Diagnostic, error) {
	txids := dups.Txids()
	if ar.maxFetches > 0 && len(txids) > ar.maxFetches {
		return nil, nil, fmt.Errorf("analysis: %d spending transactions to fetch, limit is %d: %w",
			len(txids), ar.maxFetches, domain.ErrFetchLimit)
	}

	type result struct {
		addrs []domain.Address
		diags []domain.Diagnostic
	}
	results := make([]result, len(txids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ar.concurrency)

	for i, txid := range txids {
		g.Go(func() error {
			tx, err := ar.source.Transaction(gctx, txid)
			if err != nil {
				return &domain.DataSourceError{Stage: domain.StageInputs, Txid: txid, Err: err}
			}
			addrs, diags := ar.inputAddresses(tx)
			results[i] = result{addrs: addrs, diags: diags}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	inputs := make(domain.InputAddressMap, len(txids))
	var diags []domain.Diagnostic
	for i, txid := range txids {
		inputs[txid] = results[i].addrs
		diags = append(diags, results[i].diags...)
	}
	return inputs, diags, nil
}

func (ar *AddressRecoverer) inputAddresses(tx *domain.Transaction) ([]domain.Address, []domain.Diagnostic) {
	addrs := make([]domain.Address, 0, len(tx.Inputs))
	var diags []domain.Diagnostic

	for i, in := range tx.Inputs {
		if in.Address == "" {
			rerr := &domain.AddressResolutionError{Txid: tx.Txid, Side: domain.SideInput, Index: i}
			diags = append(diags, rerr.Diagnostic())
			continue
		}
		if d, ok := ar.checkNetwork(tx.Txid, domain.SideInput, i, in.Address); !ok {
			diags = append(diags, d)
		}
		addrs = append(addrs, in.Address)
	}
	return addrs, diags
}

// checkNetwork reports whether addr decodes for the configured chain. The
// address is kept either way; a mismatch usually means the explorer and the
// configured network disagree.
func (ar *AddressRecoverer) checkNetwork(txid domain.Txid, side domain.Side, index int, addr domain.Address) (domain.Diagnostic, bool) {
	if ar.network == nil {
		return domain.Diagnostic{}, true
	}

	decoded, err := btcutil.DecodeAddress(string(addr), ar.network)
	if err == nil && decoded.IsForNet(ar.network) {
		return domain.Diagnostic{}, true
	}

	detail := "address is not valid for " + ar.network.Name
	if err != nil {
		detail += ": " + err.Error()
	}
	return domain.Diagnostic{
		Kind:    domain.DiagNetworkMismatch,
		Txid:    txid,
		Side:    side,
		Index:   index,
		Address: addr,
		Detail:  detail,
	}, false
}

func reusedAddressDiagnostics(txid domain.Txid, outputs domain.OutputAddressMap) []domain.Diagnostic {
	var reused []domain.Address
	for addr, slot := range outputs {
		if len(slot.Indexes) > 1 {
			reused = append(reused, addr)
		}
	}
	sort.Slice(reused, func(i, j int) bool { return reused[i] < reused[j] })

	diags := make([]domain.Diagnostic, 0, len(reused))
	for _, addr := range reused {
		slot := outputs[addr]
		idx := make([]string, len(slot.Indexes))
		for i, n := range slot.Indexes {
			idx[i] = fmt.Sprint(n)
		}
		diags = append(diags, domain.Diagnostic{
			Kind:    domain.DiagAddressReused,
			Txid:    txid,
			Side:    domain.SideOutput,
			Index:   slot.Indexes[0],
			Address: addr,
			Detail:  fmt.Sprintf("outputs %s pay the same address; values summed to %s", strings.Join(idx, ","), slot.Value),
		})
	}
	return diags
}
