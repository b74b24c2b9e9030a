package public

// txRequest is the wire shape submit_transaction accepts: a signed
// transaction with every binary field hex/decimal encoded for JSON,
// matching database.SignedTx field for field.
type txRequest struct {
	Nonce     uint64 `json:"nonce"`
	GasPrice  uint64 `json:"gas_price"`
	GasLimit  uint64 `json:"gas_limit"`
	To        string `json:"to" validate:"required"`
	Value     string `json:"value" validate:"required"`
	Data      string `json:"data"`
	From      string `json:"from" validate:"required"`
	PublicKey string `json:"public_key" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// txSubmitResponse acknowledges a submitted transaction.
type txSubmitResponse struct {
	Status string `json:"status"`
	TxID   string `json:"tx_id"`
}

// balanceResponse is get_balance's response.
type balanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// chainInfoResponse is chain_info's response.
type chainInfoResponse struct {
	TipID           string `json:"tip_id"`
	Height          uint64 `json:"height"`
	TotalDifficulty string `json:"total_difficulty"`
}

// minerStartRequest is miner_start's request body.
type minerStartRequest struct {
	IntervalMs uint64 `json:"interval_ms"`
}

// statusResponse is a generic operation acknowledgement.
type statusResponse struct {
	Status string `json:"status"`
}

// txView renders one committed transaction for a block response.
type txView struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	Nonce    uint64 `json:"nonce"`
	GasPrice uint64 `json:"gas_price"`
	GasLimit uint64 `json:"gas_limit"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Data     string `json:"data,omitempty"`
}

// blockView renders a committed block for a GetBlock response.
type blockView struct {
	ID           string   `json:"id"`
	Parent       string   `json:"parent"`
	Height       uint64   `json:"height,omitempty"`
	Nonce        uint64   `json:"nonce"`
	Difficulty   string   `json:"difficulty"`
	TimestampMs  uint64   `json:"timestamp_ms"`
	MerkleRoot   string   `json:"merkle_root"`
	StateRoot    string   `json:"state_root"`
	Miner        string   `json:"miner"`
	Transactions []txView `json:"transactions"`
}
