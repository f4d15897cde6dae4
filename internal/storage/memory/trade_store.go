package memory

import (
	"context"
	"sort"
	"sync"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Trade // keyed by signature
	nextID int64
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data:   make(map[string]*domain.Trade),
		nextID: 1,
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if the signature exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	cp.ID = s.nextID
	s.nextID++
	s.data[t.Signature] = &cp
	return nil
}

// GetBySignature retrieves a trade by signature. Returns ErrNotFound if absent.
func (s *TradeStore) GetBySignature(_ context.Context, signature string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

// GetByWallet retrieves up to limit trades for a wallet, newest first.
func (s *TradeStore) GetByWallet(_ context.Context, wallet string, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.TraderAddress == wallet {
			cp := *t
			result = append(result, &cp)
		}
	}

	sortTradesDesc(result)
	return truncateTrades(result, limit), nil
}

// GetRecent retrieves up to limit trades across all wallets, newest first.
func (s *TradeStore) GetRecent(_ context.Context, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Trade, 0, len(s.data))
	for _, t := range s.data {
		cp := *t
		result = append(result, &cp)
	}

	sortTradesDesc(result)
	return truncateTrades(result, limit), nil
}

// Reset removes all trades.
func (s *TradeStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*domain.Trade)
	s.nextID = 1
	return nil
}

func sortTradesDesc(trades []*domain.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].BlockTime != trades[j].BlockTime {
			return trades[i].BlockTime > trades[j].BlockTime
		}
		return trades[i].ID > trades[j].ID
	})
}

func truncateTrades(trades []*domain.Trade, limit int) []*domain.Trade {
	if limit > 0 && len(trades) > limit {
		return trades[:limit]
	}
	return trades
}
