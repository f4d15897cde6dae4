package memory

import (
	"context"
	"sort"
	"sync"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// PnlStore is an in-memory implementation of storage.PnlStore.
type PnlStore struct {
	mu     sync.RWMutex
	events []*domain.RealizedPnlEvent // insertion order
	bySig  map[string]struct{}
	nextID int64
}

// NewPnlStore creates a new in-memory realized-PNL store.
func NewPnlStore() *PnlStore {
	return &PnlStore{
		bySig:  make(map[string]struct{}),
		nextID: 1,
	}
}

// Compile-time interface check.
var _ storage.PnlStore = (*PnlStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if an event for the trade
// signature exists.
func (s *PnlStore) Insert(_ context.Context, e *domain.RealizedPnlEvent) error {
	if e == nil || e.TradeSignature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySig[e.TradeSignature]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *e
	cp.ID = s.nextID
	s.nextID++
	s.events = append(s.events, &cp)
	s.bySig[e.TradeSignature] = struct{}{}
	return nil
}

// ScanSince streams events with BlockTime >= since in insertion order.
func (s *PnlStore) ScanSince(_ context.Context, since int64, fn func(*domain.RealizedPnlEvent) error) error {
	s.mu.RLock()
	snapshot := make([]*domain.RealizedPnlEvent, len(s.events))
	copy(snapshot, s.events)
	s.mu.RUnlock()

	for _, e := range snapshot {
		if e.BlockTime < since {
			continue
		}
		cp := *e
		if err := fn(&cp); err != nil {
			return err
		}
	}
	return nil
}

// GetByWallet retrieves all events for a wallet, ordered by block time ASC.
func (s *PnlStore) GetByWallet(_ context.Context, wallet string) ([]*domain.RealizedPnlEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RealizedPnlEvent
	for _, e := range s.events {
		if e.WalletAddress == wallet {
			cp := *e
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockTime != result[j].BlockTime {
			return result[i].BlockTime < result[j].BlockTime
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Reset removes all events.
func (s *PnlStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
	s.bySig = make(map[string]struct{})
	s.nextID = 1
	return nil
}
