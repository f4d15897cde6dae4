package domain

// Direction indicates which side of the swap the trader was on.
type Direction string

// Trade directions.
const (
	// DirectionBuy means the trader spent SOL and received tokens.
	DirectionBuy Direction = "BUY"
	// DirectionSell means the trader sent tokens and received SOL.
	DirectionSell Direction = "SELL"
)

// DirectionConfidence records how the classifier arrived at a direction.
type DirectionConfidence string

// Direction confidence levels.
const (
	// ConfidenceExact means the trader was tied to both legs of the transfer.
	ConfidenceExact DirectionConfidence = "exact"
	// ConfidenceInferred means the direction came from the fallback heuristic.
	// Inferred trades still enter the ledger but are auditable separately.
	ConfidenceInferred DirectionConfidence = "inferred"
)

// Trade represents an accepted swap on the monitored program.
// Corresponds to the trades table in PostgreSQL. Trades are append-only:
// the signature is globally unique and a second insert is an idempotent no-op.
type Trade struct {
	ID            int64               // BIGSERIAL primary key
	Signature     string              // Solana transaction signature, unique
	BlockTime     int64               // Unix timestamp in seconds
	TraderAddress string              // wallet that made the trade
	TokenMint     string              // token mint address
	Direction     Direction           // BUY | SELL
	Confidence    DirectionConfidence // exact | inferred
	TokenAmount   float64             // token quantity, > 0
	SolAmount     float64             // SOL quantity, > 0
	CreatedAt     int64               // record creation timestamp (seconds)
}
