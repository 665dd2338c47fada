package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTxid       = errors.New("invalid txid")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
	ErrFetchLimit        = errors.New("fetch limit exceeded")
	ErrLockHeld          = errors.New("lock already held")
)

// Stage names the pipeline step that talked to the data source.
type Stage string

const (
	StageOutspends Stage = "outspends"
	StageOutputs   Stage = "outputs"
	StageInputs    Stage = "inputs"
)

// DataSourceError is a transport failure or malformed response from the
// explorer. It is fatal for the run.
type DataSourceError struct {
	Stage Stage
	Txid  Txid
	Err   error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source: %s %s: %v", e.Stage, e.Txid, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// Side tells whether an entry is a transaction input or output.
type Side string

const (
	SideInput  Side = "input"
	SideOutput Side = "output"
)

// AddressResolutionError reports an input or output without a usable address.
// The analysis records it as a Diagnostic and skips the entry.
type AddressResolutionError struct {
	Txid  Txid
	Side  Side
	Index int
}

func (e *AddressResolutionError) Error() string {
	return fmt.Sprintf("no address for %s %d of %s", e.Side, e.Index, e.Txid)
}

// Diagnostic converts the error into the report form.
func (e *AddressResolutionError) Diagnostic() Diagnostic {
	return Diagnostic{
		Kind:   DiagAddressUnresolved,
		Txid:   e.Txid,
		Side:   e.Side,
		Index:  e.Index,
		Detail: e.Error(),
	}
}
