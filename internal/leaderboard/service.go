package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pumploss/internal/domain"
	"pumploss/internal/observability"
	"pumploss/internal/storage"
)

const (
	// cacheFreshness is how long a cached leaderboard is served without
	// recomputation.
	cacheFreshness = 2 * time.Minute

	// refreshLimit is the internal row budget for a recomputation; read
	// requests slice their smaller limit out of it.
	refreshLimit = 1000
)

// Service serves leaderboards through the cache and computes per-wallet
// stats. Reads fall back to recomputation when the cache is stale, missing
// or unreachable.
type Service struct {
	agg     *Aggregator
	cache   storage.LeaderboardCacheStore
	pnl     storage.PnlStore
	wallets storage.WalletStore
	logger  *slog.Logger
	now     func() int64
}

// NewService creates a leaderboard Service.
func NewService(agg *Aggregator, cache storage.LeaderboardCacheStore, pnl storage.PnlStore, wallets storage.WalletStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		agg:     agg,
		cache:   cache,
		pnl:     pnl,
		wallets: wallets,
		logger:  logger,
		now:     func() int64 { return time.Now().Unix() },
	}
}

// GetLeaderboard returns up to limit entries for the period, serving the
// cached sequence while it is fresh and recomputing otherwise.
func (s *Service) GetLeaderboard(ctx context.Context, period domain.Period, limit int) ([]domain.LeaderboardEntry, error) {
	cached, err := s.cache.Get(ctx, period)
	if err == nil && s.now()-cached.LastUpdated < int64(cacheFreshness.Seconds()) {
		observability.RecordLeaderboardCacheLookup(true)
		return truncate(cached.Entries, limit), nil
	}
	observability.RecordLeaderboardCacheLookup(false)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		// A cache outage degrades to recomputation, it does not fail reads.
		s.logger.Warn("leaderboard cache read failed", "period", period, "error", err)
	}

	entries, err := s.Refresh(ctx, period)
	if err != nil {
		return nil, err
	}
	return truncate(entries, limit), nil
}

// Refresh recomputes the leaderboard for the period and overwrites its cache
// record regardless of staleness.
func (s *Service) Refresh(ctx context.Context, period domain.Period) ([]domain.LeaderboardEntry, error) {
	entries, err := s.agg.Compute(ctx, period, refreshLimit)
	if err != nil {
		return nil, fmt.Errorf("compute %s leaderboard: %w", period, err)
	}
	observability.RecordLeaderboardRefresh(string(period))

	cached := &domain.CachedLeaderboard{
		Period:      period,
		Entries:     entries,
		LastUpdated: s.now(),
	}
	if err := s.cache.Put(ctx, cached); err != nil {
		s.logger.Warn("leaderboard cache write failed", "period", period, "error", err)
	}
	return entries, nil
}

// RefreshAll recomputes every period. Used by the scheduled refresh job.
func (s *Service) RefreshAll(ctx context.Context) error {
	for _, period := range domain.AllPeriods {
		if _, err := s.Refresh(ctx, period); err != nil {
			return err
		}
	}
	return nil
}

// WalletStats computes the stats document for one wallet from its PNL events
// and running aggregates. Returns storage.ErrNotFound for wallets the system
// has never seen.
func (s *Service) WalletStats(ctx context.Context, address string) (*domain.WalletStats, error) {
	agg, err := s.wallets.Get(ctx, address)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get wallet aggregate: %w", err)
	}

	events, evErr := s.pnl.GetByWallet(ctx, address)
	if evErr != nil {
		return nil, fmt.Errorf("get wallet pnl events: %w", evErr)
	}
	if agg == nil && len(events) == 0 {
		return nil, storage.ErrNotFound
	}

	now := s.now()
	t24 := domain.Period24h.Threshold(now)
	t7d := domain.Period7d.Threshold(now)

	stats := &domain.WalletStats{Address: address}
	for _, ev := range events {
		stats.PnlAllTime += ev.PnlSol
		if ev.BlockTime >= t7d {
			stats.Pnl7d += ev.PnlSol
		}
		if ev.BlockTime >= t24 {
			stats.Pnl24h += ev.PnlSol
		}
		if ev.PnlSol < 0 {
			stats.LossCountAll++
			if ev.BlockTime >= t7d {
				stats.LossCount7d++
			}
			if ev.BlockTime >= t24 {
				stats.LossCount24h++
			}
			if ev.PnlSol < stats.BiggestLoss {
				stats.BiggestLoss = ev.PnlSol
				stats.BiggestLossMint = ev.TokenMint
			}
		}
	}
	if agg != nil {
		stats.TotalTrades = agg.TotalTrades
		stats.TotalVolumeSol = agg.TotalVolumeSol
	}
	return stats, nil
}

func truncate(entries []domain.LeaderboardEntry, limit int) []domain.LeaderboardEntry {
	if limit <= 0 || limit >= len(entries) {
		return entries
	}
	return entries[:limit]
}
