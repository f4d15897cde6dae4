package postgres

import (
	"context"
	"fmt"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL.
// Writes carry an optimistic version check so a racing writer that slipped
// past the engine's per-key lock surfaces as ErrConflict instead of a lost
// update.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// Get retrieves the entry for (wallet, mint). Returns ErrNotFound if absent.
func (s *LedgerStore) Get(ctx context.Context, wallet, mint string) (*domain.LedgerEntry, error) {
	query := `
		SELECT wallet_address, token_mint, tokens_held, weighted_avg_cost_sol, last_updated, version
		FROM token_cost_basis
		WHERE wallet_address = $1 AND token_mint = $2
	`

	var e domain.LedgerEntry
	err := s.pool.QueryRow(ctx, query, wallet, mint).Scan(
		&e.WalletAddress, &e.TokenMint, &e.TokensHeld, &e.WeightedAvgCostSol, &e.LastUpdated, &e.Version,
	)
	if err != nil {
		if errIsNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return &e, nil
}

// Create inserts a new entry with version 1. Returns ErrConflict if the key
// already exists.
func (s *LedgerStore) Create(ctx context.Context, e *domain.LedgerEntry) error {
	query := `
		INSERT INTO token_cost_basis (wallet_address, token_mint, tokens_held, weighted_avg_cost_sol, last_updated, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (wallet_address, token_mint) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		e.WalletAddress, e.TokenMint, e.TokensHeld, e.WeightedAvgCostSol, e.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("create ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	return nil
}

// Update overwrites the entry only if the stored version equals e.Version.
func (s *LedgerStore) Update(ctx context.Context, e *domain.LedgerEntry) error {
	query := `
		UPDATE token_cost_basis
		SET tokens_held = $3, weighted_avg_cost_sol = $4, last_updated = $5, version = version + 1
		WHERE wallet_address = $1 AND token_mint = $2 AND version = $6
	`

	tag, err := s.pool.Exec(ctx, query,
		e.WalletAddress, e.TokenMint, e.TokensHeld, e.WeightedAvgCostSol, e.LastUpdated, e.Version,
	)
	if err != nil {
		return fmt.Errorf("update ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}
	return nil
}

// Delete removes the entry only if the stored version matches.
func (s *LedgerStore) Delete(ctx context.Context, wallet, mint string, version int64) error {
	query := `
		DELETE FROM token_cost_basis
		WHERE wallet_address = $1 AND token_mint = $2 AND version = $3
	`

	tag, err := s.pool.Exec(ctx, query, wallet, mint, version)
	if err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a version race.
		if _, getErr := s.Get(ctx, wallet, mint); getErr == storage.ErrNotFound {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}
	return nil
}

// Reset removes all entries.
func (s *LedgerStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE token_cost_basis`); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	return nil
}
