package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// memSource is an in-memory domain.TxSource serving canned explorer data.
type memSource struct {
	mu        sync.Mutex
	outspends map[domain.Txid][]domain.Outspend
	txs       map[domain.Txid]*domain.Transaction
	fail      map[domain.Txid]error
	calls     map[string]int
}

func newMemSource() *memSource {
	return &memSource{
		outspends: make(map[domain.Txid][]domain.Outspend),
		txs:       make(map[domain.Txid]*domain.Transaction),
		fail:      make(map[domain.Txid]error),
		calls:     make(map[string]int),
	}
}

func (m *memSource) Outspends(_ context.Context, txid domain.Txid) ([]domain.Outspend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["outspends:"+string(txid)]++

	if err, ok := m.fail[txid]; ok {
		return nil, err
	}
	outs, ok := m.outspends[txid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return outs, nil
}

func (m *memSource) Transaction(_ context.Context, txid domain.Txid) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["tx:"+string(txid)]++

	if err, ok := m.fail[txid]; ok {
		return nil, err
	}
	tx, ok := m.txs[txid]
	if !ok {
		return nil, fmt.Errorf("tx %s: %w", txid, domain.ErrNotFound)
	}
	return tx, nil
}

// spends sets the outspends of txid; an empty string marks an unspent output.
func (m *memSource) spends(txid domain.Txid, spenders ...domain.Txid) {
	outs := make([]domain.Outspend, len(spenders))
	for i, s := range spenders {
		if s != "" {
			outs[i] = domain.Outspend{Spent: true, Txid: s, Vin: i}
		}
	}
	m.outspends[txid] = outs
}

// pays adds a transaction with the given outputs and no inputs.
func (m *memSource) pays(txid domain.Txid, outs ...domain.TxOutput) {
	tx := m.tx(txid)
	for i := range outs {
		outs[i].Index = len(tx.Outputs) + i
	}
	tx.Outputs = append(tx.Outputs, outs...)
}

// spendsFrom adds inputs drawing from the given addresses.
func (m *memSource) spendsFrom(txid domain.Txid, addrs ...domain.Address) {
	tx := m.tx(txid)
	for _, a := range addrs {
		tx.Inputs = append(tx.Inputs, domain.TxInput{Address: a})
	}
}

func (m *memSource) tx(txid domain.Txid) *domain.Transaction {
	tx, ok := m.txs[txid]
	if !ok {
		tx = &domain.Transaction{Txid: txid}
		m.txs[txid] = tx
	}
	return tx
}

func out(addr domain.Address, btc string) domain.TxOutput {
	v, err := domain.ParseAmount(btc)
	if err != nil {
		panic(err)
	}
	return domain.TxOutput{Address: addr, Value: v}
}

func btc(s string) domain.Amount {
	v, err := domain.ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

func txid(c byte) domain.Txid {
	return domain.Txid(strings.Repeat(string(c), 64))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
