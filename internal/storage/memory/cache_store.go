package memory

import (
	"context"
	"sync"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// LeaderboardCacheStore is an in-memory implementation of
// storage.LeaderboardCacheStore.
type LeaderboardCacheStore struct {
	mu   sync.RWMutex
	data map[domain.Period]*domain.CachedLeaderboard
}

// NewLeaderboardCacheStore creates a new in-memory leaderboard cache.
func NewLeaderboardCacheStore() *LeaderboardCacheStore {
	return &LeaderboardCacheStore{
		data: make(map[domain.Period]*domain.CachedLeaderboard),
	}
}

// Compile-time interface check.
var _ storage.LeaderboardCacheStore = (*LeaderboardCacheStore)(nil)

// Get retrieves the cached leaderboard for a period.
func (s *LeaderboardCacheStore) Get(_ context.Context, period domain.Period) (*domain.CachedLeaderboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached, exists := s.data[period]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *cached
	cp.Entries = append([]domain.LeaderboardEntry(nil), cached.Entries...)
	return &cp, nil
}

// Put overwrites the cache record for cached.Period.
func (s *LeaderboardCacheStore) Put(_ context.Context, cached *domain.CachedLeaderboard) error {
	if cached == nil || cached.Period == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cached
	cp.Entries = append([]domain.LeaderboardEntry(nil), cached.Entries...)
	s.data[cached.Period] = &cp
	return nil
}

// Reset removes all cache records.
func (s *LeaderboardCacheStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[domain.Period]*domain.CachedLeaderboard)
	return nil
}
