package domain

// LedgerEntry is a wallet's open position in a single token under the
// weighted-average-cost model. Corresponds to the token_cost_basis table.
//
// The entry is owned exclusively by the accounting engine: TokensHeld moves
// only through BUY (increase) and SELL (decrease) trades for the same key,
// and WeightedAvgCostSol changes only on BUY. When TokensHeld reaches zero
// the row is deleted so a later BUY starts a fresh WAC computation.
type LedgerEntry struct {
	WalletAddress      string
	TokenMint          string
	TokensHeld         float64 // >= 0
	WeightedAvgCostSol float64 // SOL cost per token unit
	LastUpdated        int64   // block time of the last applied trade (seconds)
	Version            int64   // optimistic-concurrency version, starts at 1
}
