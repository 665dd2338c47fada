package domain

// Outspend describes what happened to one output of a transaction. Txid and
// Vin are only meaningful when Spent is true.
type Outspend struct {
	Spent bool `json:"spent"`
	Txid  Txid `json:"txid,omitempty"`
	Vin   int  `json:"vin,omitempty"`
}

// TxInput is a transaction input together with the output it spends.
// Address is empty when the explorer could not derive one from the
// previous output script.
type TxInput struct {
	PrevTxid Txid    `json:"prev_txid,omitempty"`
	PrevVout uint32  `json:"prev_vout"`
	Address  Address `json:"address,omitempty"`
	Value    Amount  `json:"value"`
	Coinbase bool    `json:"coinbase,omitempty"`
}

// TxOutput is a single transaction output. Address is empty for scripts the
// explorer cannot map to an address (OP_RETURN, bare multisig, ...).
type TxOutput struct {
	Index      int     `json:"index"`
	Address    Address `json:"address,omitempty"`
	Value      Amount  `json:"value"`
	ScriptType string  `json:"script_type,omitempty"`
}

// Transaction is the subset of explorer transaction detail the analysis uses.
type Transaction struct {
	Txid    Txid       `json:"txid"`
	Inputs  []TxInput  `json:"vin"`
	Outputs []TxOutput `json:"vout"`
}
