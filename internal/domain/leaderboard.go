package domain

import "fmt"

// Period is a rolling or unbounded time window for leaderboard aggregation.
type Period string

// Leaderboard periods.
const (
	Period24h Period = "24h"
	Period7d  Period = "7d"
	PeriodAll Period = "all"
)

// AllPeriods lists every supported period, in refresh order.
var AllPeriods = []Period{Period24h, Period7d, PeriodAll}

// ParsePeriod validates a raw period string.
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case Period24h, Period7d, PeriodAll:
		return Period(raw), nil
	default:
		return "", fmt.Errorf("invalid period %q (expected 24h|7d|all)", raw)
	}
}

// Threshold returns the lower block-time bound (seconds) for the period,
// or 0 for the unbounded "all" period. now is Unix seconds.
func (p Period) Threshold(now int64) int64 {
	switch p {
	case Period24h:
		return now - 24*60*60
	case Period7d:
		return now - 7*24*60*60
	default:
		return 0
	}
}

// LeaderboardEntry is one ranked row of the loss leaderboard. Entries are
// recomputed from the PNL log and persisted only inside the cache.
type LeaderboardEntry struct {
	Rank            int     `json:"rank"`
	WalletAddress   string  `json:"walletAddress"`
	PnlAmount       float64 `json:"pnlAmount"` // sum over the window, < 0
	LossTradeCount  int     `json:"lossTradeCount"`
	BiggestLossMint string  `json:"biggestLossMint,omitempty"`
	LastLossTime    int64   `json:"lastLossTime,omitempty"`
	AllTimeLoss     float64 `json:"allTimeLoss"`
}

// CachedLeaderboard is the last computed leaderboard for one period.
type CachedLeaderboard struct {
	Period      Period             `json:"period"`
	Entries     []LeaderboardEntry `json:"entries"`
	LastUpdated int64              `json:"lastUpdated"` // Unix seconds
}
