package domain

// RealizedPnlEvent is the profit or loss recognized at the moment of a SELL,
// one event per disposal trade. Corresponds to the realized_pnl table.
// Events are append-only and never mutated.
type RealizedPnlEvent struct {
	ID             int64   // BIGSERIAL primary key
	TradeSignature string  // originating trade, unique
	WalletAddress  string
	TokenMint      string
	TokensSold     float64
	SolReceived    float64 // proceeds in SOL
	CostBasisSol   float64 // WAC-derived cost of the disposed quantity
	PnlSol         float64 // SolReceived - CostBasisSol
	// CostBasisKnown is false when the wallet had no (or insufficient) cost
	// basis at disposal time. Such events carry PnlSol = 0 and
	// CostBasisSol = SolReceived (break-even assumption) so they contribute
	// nothing to rankings while staying auditable.
	CostBasisKnown bool
	BlockTime      int64 // Unix timestamp in seconds
}
