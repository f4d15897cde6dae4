// Package leaderboard computes and caches the realized-loss leaderboard from
// the PNL log.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// Aggregator computes leaderboards by scanning the PNL log. It holds no
// mutable state and never writes.
type Aggregator struct {
	pnl storage.PnlStore
	now func() int64
}

// NewAggregator creates an Aggregator over the PNL log.
func NewAggregator(pnl storage.PnlStore) *Aggregator {
	return &Aggregator{
		pnl: pnl,
		now: func() int64 { return time.Now().Unix() },
	}
}

// walletAcc accumulates one wallet's events during a scan.
type walletAcc struct {
	wallet       string
	totalPnl     float64
	lossCount    int
	biggestLoss  float64
	biggestMint  string
	lastLossTime int64
}

// Compute scans realized-PNL events within the period window, groups them by
// wallet and returns wallets with a net loss, most negative first, ranked
// from 1. Ties keep the order of first appearance in the scan. Degraded
// break-even events contribute zero and never count as losses. For bounded
// periods each listed wallet additionally carries its all-time cumulative
// loss from a second scan; for the unbounded period that equals the window
// total.
func (a *Aggregator) Compute(ctx context.Context, period domain.Period, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	threshold := period.Threshold(a.now())

	byWallet := make(map[string]*walletAcc)
	order := make([]*walletAcc, 0)

	err := a.pnl.ScanSince(ctx, threshold, func(ev *domain.RealizedPnlEvent) error {
		acc, ok := byWallet[ev.WalletAddress]
		if !ok {
			acc = &walletAcc{wallet: ev.WalletAddress}
			byWallet[ev.WalletAddress] = acc
			order = append(order, acc)
		}
		acc.totalPnl += ev.PnlSol
		if ev.PnlSol < 0 {
			acc.lossCount++
			if ev.PnlSol < acc.biggestLoss {
				acc.biggestLoss = ev.PnlSol
				acc.biggestMint = ev.TokenMint
			}
			if ev.BlockTime > acc.lastLossTime {
				acc.lastLossTime = ev.BlockTime
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan pnl events: %w", err)
	}

	losers := make([]*walletAcc, 0, len(order))
	for _, acc := range order {
		if acc.totalPnl < 0 {
			losers = append(losers, acc)
		}
	}
	sort.SliceStable(losers, func(i, j int) bool {
		return losers[i].totalPnl < losers[j].totalPnl
	})
	if len(losers) > limit {
		losers = losers[:limit]
	}

	entries := make([]domain.LeaderboardEntry, len(losers))
	for i, acc := range losers {
		entries[i] = domain.LeaderboardEntry{
			Rank:            i + 1,
			WalletAddress:   acc.wallet,
			PnlAmount:       acc.totalPnl,
			LossTradeCount:  acc.lossCount,
			BiggestLossMint: acc.biggestMint,
			LastLossTime:    acc.lastLossTime,
			AllTimeLoss:     acc.totalPnl,
		}
	}

	if period != domain.PeriodAll && len(entries) > 0 {
		if err := a.attachAllTimeLoss(ctx, entries); err != nil {
			return nil, err
		}
	}

	return entries, nil
}

// attachAllTimeLoss overwrites AllTimeLoss on each entry with the wallet's
// cumulative negative PNL over the whole log.
func (a *Aggregator) attachAllTimeLoss(ctx context.Context, entries []domain.LeaderboardEntry) error {
	idx := make(map[string]int, len(entries))
	for i := range entries {
		idx[entries[i].WalletAddress] = i
		entries[i].AllTimeLoss = 0
	}

	err := a.pnl.ScanSince(ctx, 0, func(ev *domain.RealizedPnlEvent) error {
		if ev.PnlSol >= 0 {
			return nil
		}
		if i, ok := idx[ev.WalletAddress]; ok {
			entries[i].AllTimeLoss += ev.PnlSol
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan all-time losses: %w", err)
	}
	return nil
}
