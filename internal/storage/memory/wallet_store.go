package memory

import (
	"context"
	"sync"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalletAggregate
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		data: make(map[string]*domain.WalletAggregate),
	}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// Get retrieves aggregates for a wallet. Returns ErrNotFound if absent.
func (s *WalletStore) Get(_ context.Context, address string) (*domain.WalletAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *w
	return &cp, nil
}

// RecordTrade upserts the wallet row for one accepted trade.
func (s *WalletStore) RecordTrade(_ context.Context, address string, blockTime int64, solAmount float64) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.data[address]
	if !exists {
		s.data[address] = &domain.WalletAggregate{
			Address:        address,
			FirstSeen:      blockTime,
			LastSeen:       blockTime,
			TotalTrades:    1,
			TotalVolumeSol: solAmount,
		}
		return nil
	}

	if blockTime > w.LastSeen {
		w.LastSeen = blockTime
	}
	w.TotalTrades++
	w.TotalVolumeSol += solAmount
	return nil
}

// Reset removes all aggregates.
func (s *WalletStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*domain.WalletAggregate)
	return nil
}
