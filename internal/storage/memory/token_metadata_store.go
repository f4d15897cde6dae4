package memory

import (
	"context"
	"sync"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// TokenMetadataStore is an in-memory implementation of storage.TokenMetadataStore.
type TokenMetadataStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenMetadata
}

// NewTokenMetadataStore creates a new in-memory token metadata store.
func NewTokenMetadataStore() *TokenMetadataStore {
	return &TokenMetadataStore{
		data: make(map[string]*domain.TokenMetadata),
	}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// Upsert inserts or refreshes metadata for a mint. Empty incoming fields do
// not clobber previously known values.
func (s *TokenMetadataStore) Upsert(_ context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[m.Mint]
	if !exists {
		cp := *m
		s.data[m.Mint] = &cp
		return nil
	}

	if m.Symbol != "" {
		current.Symbol = m.Symbol
	}
	if m.Name != "" {
		current.Name = m.Name
	}
	if m.Decimals > 0 {
		current.Decimals = m.Decimals
	}
	current.LastUpdated = m.LastUpdated
	return nil
}

// GetByMint retrieves metadata by mint. Returns ErrNotFound if absent.
func (s *TokenMetadataStore) GetByMint(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *m
	return &cp, nil
}

// Reset removes all metadata.
func (s *TokenMetadataStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*domain.TokenMetadata)
	return nil
}
