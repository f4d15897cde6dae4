package memory

import (
	"context"
	"fmt"
	"sync"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore with the
// same optimistic-versioning semantics as the PostgreSQL store.
type LedgerStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LedgerEntry // keyed by wallet|mint
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		data: make(map[string]*domain.LedgerEntry),
	}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// ledgerKey generates a unique key for a position.
func ledgerKey(wallet, mint string) string {
	return fmt.Sprintf("%s|%s", wallet, mint)
}

// Get retrieves the entry for (wallet, mint). Returns ErrNotFound if absent.
func (s *LedgerStore) Get(_ context.Context, wallet, mint string) (*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[ledgerKey(wallet, mint)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *e
	return &cp, nil
}

// Create inserts a new entry with version 1. Returns ErrConflict if the key
// already exists.
func (s *LedgerStore) Create(_ context.Context, e *domain.LedgerEntry) error {
	if e == nil || e.WalletAddress == "" || e.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerKey(e.WalletAddress, e.TokenMint)
	if _, exists := s.data[key]; exists {
		return storage.ErrConflict
	}

	cp := *e
	cp.Version = 1
	s.data[key] = &cp
	return nil
}

// Update overwrites the entry only if the stored version equals e.Version.
func (s *LedgerStore) Update(_ context.Context, e *domain.LedgerEntry) error {
	if e == nil || e.WalletAddress == "" || e.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerKey(e.WalletAddress, e.TokenMint)
	current, exists := s.data[key]
	if !exists || current.Version != e.Version {
		return storage.ErrConflict
	}

	cp := *e
	cp.Version = current.Version + 1
	s.data[key] = &cp
	return nil
}

// Delete removes the entry only if the stored version matches.
func (s *LedgerStore) Delete(_ context.Context, wallet, mint string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerKey(wallet, mint)
	current, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}
	if current.Version != version {
		return storage.ErrConflict
	}

	delete(s.data, key)
	return nil
}

// Reset removes all entries.
func (s *LedgerStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*domain.LedgerEntry)
	return nil
}
