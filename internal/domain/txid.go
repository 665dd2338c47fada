package domain

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Txid is a transaction identifier in its canonical 64-character hex form.
type Txid string

// Address is a chain-encoded output address as reported by the explorer.
type Address string

// ParseTxid normalises s and checks that it is a 32-byte hex hash.
func ParseTxid(s string) (Txid, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != chainhash.MaxHashStringSize {
		return "", fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidTxid, s, len(s), chainhash.MaxHashStringSize)
	}
	if _, err := chainhash.NewHashFromStr(s); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidTxid, s, err)
	}
	return Txid(s), nil
}

// Short returns an abbreviated form for log lines.
func (t Txid) Short() string {
	if len(t) <= 16 {
		return string(t)
	}
	return string(t[:8]) + ".." + string(t[len(t)-8:])
}

func (t Txid) String() string { return string(t) }
