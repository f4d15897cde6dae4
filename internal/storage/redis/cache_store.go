// Package redis provides a Redis-backed leaderboard cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// LeaderboardCacheStore implements storage.LeaderboardCacheStore on Redis.
// One key per period holds the JSON-encoded cached leaderboard. Keys carry a
// generous TTL as a safety net; freshness decisions stay with the
// leaderboard service, which compares LastUpdated itself.
type LeaderboardCacheStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLeaderboardCacheStore creates a Redis-backed leaderboard cache.
// ttl <= 0 disables expiration.
func NewLeaderboardCacheStore(rdb *redis.Client, ttl time.Duration) *LeaderboardCacheStore {
	return &LeaderboardCacheStore{rdb: rdb, ttl: ttl}
}

// Compile-time interface check.
var _ storage.LeaderboardCacheStore = (*LeaderboardCacheStore)(nil)

// Get retrieves the cached leaderboard for a period.
func (s *LeaderboardCacheStore) Get(ctx context.Context, period domain.Period) (*domain.CachedLeaderboard, error) {
	data, err := s.rdb.Get(ctx, cacheKey(period)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis get leaderboard cache: %w", err)
	}

	var cached domain.CachedLeaderboard
	if err := json.Unmarshal(data, &cached); err != nil {
		// A corrupt value is indistinguishable from a miss for callers;
		// they recompute and overwrite it.
		return nil, storage.ErrNotFound
	}
	return &cached, nil
}

// Put overwrites the cache record for cached.Period.
func (s *LeaderboardCacheStore) Put(ctx context.Context, cached *domain.CachedLeaderboard) error {
	if cached == nil || cached.Period == "" {
		return storage.ErrInvalidInput
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal leaderboard cache: %w", err)
	}

	if err := s.rdb.Set(ctx, cacheKey(cached.Period), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set leaderboard cache: %w", err)
	}
	return nil
}

// Reset removes all cache records.
func (s *LeaderboardCacheStore) Reset(ctx context.Context) error {
	keys := make([]string, 0, len(domain.AllPeriods))
	for _, p := range domain.AllPeriods {
		keys = append(keys, cacheKey(p))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del leaderboard cache: %w", err)
	}
	return nil
}

func cacheKey(period domain.Period) string {
	return fmt.Sprintf("leaderboard:%s", period)
}
