package classifier

// TransactionPayload is the enhanced-transaction shape delivered by the
// webhook/websocket transport: a transaction identifier, a block timestamp
// and the flattened native/token transfer legs. Fields the pipeline does not
// read (account data, instructions, fee details) are intentionally absent.
type TransactionPayload struct {
	Signature       string           `json:"signature"`
	Timestamp       int64            `json:"timestamp"` // Unix seconds
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers"`
}

// NativeTransfer is one SOL movement within a transaction.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"` // lamports, may be negative
}

// TokenTransfer is one SPL token movement within a transaction.
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"` // UI amount, decimals applied upstream
}
