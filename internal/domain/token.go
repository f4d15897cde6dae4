package domain

// TokenMetadata is display metadata for a token mint.
// Corresponds to the token_metadata table.
type TokenMetadata struct {
	Mint        string
	Symbol      string
	Name        string
	Decimals    int
	LastUpdated int64 // seconds
}
