package domain

// WalletAggregate tracks per-wallet running totals updated on every accepted
// trade. Not part of the accounting invariants; used by the stats surface.
type WalletAggregate struct {
	Address        string
	FirstSeen      int64 // block time of first accepted trade (seconds)
	LastSeen       int64
	TotalTrades    int64
	TotalVolumeSol float64
}

// WalletStats is the computed stats document served for a single wallet.
type WalletStats struct {
	Address         string  `json:"address"`
	Pnl24h          float64 `json:"pnl24h"`
	Pnl7d           float64 `json:"pnl7d"`
	PnlAllTime      float64 `json:"pnlAllTime"`
	LossCount24h    int     `json:"lossCount24h"`
	LossCount7d     int     `json:"lossCount7d"`
	LossCountAll    int     `json:"lossCountAllTime"`
	BiggestLoss     float64 `json:"biggestLoss"`
	BiggestLossMint string  `json:"biggestLossMint,omitempty"`
	TotalTrades     int64   `json:"totalTrades"`
	TotalVolumeSol  float64 `json:"totalVolumeSol"`
}
