package esplora

// outspendJSON is one element of GET /tx/{txid}/outspends. Unspent outputs
// carry only {"spent": false}.
type outspendJSON struct {
	Spent bool    `json:"spent"`
	Txid  *string `json:"txid"`
	Vin   *int    `json:"vin"`
}

// prevoutJSON is the output an input spends, as embedded by Esplora.
type prevoutJSON struct {
	ScriptPubKeyType    string  `json:"scriptpubkey_type"`
	ScriptPubKeyAddress *string `json:"scriptpubkey_address"`
	Value               *int64  `json:"value"`
}

type vinJSON struct {
	Txid       string       `json:"txid"`
	Vout       uint32       `json:"vout"`
	IsCoinbase bool         `json:"is_coinbase"`
	Prevout    *prevoutJSON `json:"prevout"`
}

type voutJSON struct {
	ScriptPubKeyType    string  `json:"scriptpubkey_type"`
	ScriptPubKeyAddress *string `json:"scriptpubkey_address"`
	Value               *int64  `json:"value"`
}

// txJSON is the subset of GET /tx/{txid} the client decodes.
type txJSON struct {
	Txid string     `json:"txid"`
	Vin  []vinJSON  `json:"vin"`
	Vout []voutJSON `json:"vout"`
}
