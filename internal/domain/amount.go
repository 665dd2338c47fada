package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// SatoshiPerBitcoin is the fixed scale between the explorer's integer values
// and the decimal BTC amounts in reports.
const SatoshiPerBitcoin int64 = btcutil.SatoshiPerBitcoin

// amountDecimals is the number of fractional digits a BTC amount can carry.
const amountDecimals = 8

// Amount is a value in satoshis. All sums are done on the integer so totals
// never drift; the decimal BTC form only exists at the encoding boundary.
type Amount int64

// BTC returns the amount as a btcutil.Amount for display helpers.
func (a Amount) BTC() btcutil.Amount {
	return btcutil.Amount(a)
}

// String renders the amount in BTC with at most 8 fractional digits and no
// trailing zeros, e.g. 10000000 -> "0.1".
func (a Amount) String() string {
	v := int64(a)
	neg := v < 0
	if neg {
		v = -v
	}

	s := strconv.FormatInt(v/SatoshiPerBitcoin, 10)
	if frac := v % SatoshiPerBitcoin; frac != 0 {
		digits := fmt.Sprintf("%0*d", amountDecimals, frac)
		s += "." + strings.TrimRight(digits, "0")
	}
	if neg {
		s = "-" + s
	}
	return s
}

// MarshalJSON encodes the amount as a bare JSON number in BTC.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or string in BTC.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAmount parses a non-negative decimal BTC string without going
// through floating point.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount: empty string")
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && frac == "" {
		return 0, fmt.Errorf("amount: %q has an empty fraction", s)
	}
	if len(frac) > amountDecimals {
		return 0, fmt.Errorf("amount: %q has more than %d decimals", s, amountDecimals)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("amount: %q is not a non-negative decimal", s)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount: %q: %w", s, err)
	}

	var f int64
	if frac != "" {
		frac += strings.Repeat("0", amountDecimals-len(frac))
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("amount: %q: %w", s, err)
		}
	}

	if w > (1<<63-1-f)/SatoshiPerBitcoin {
		return 0, fmt.Errorf("amount: %q overflows", s)
	}
	return Amount(w*SatoshiPerBitcoin + f), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
