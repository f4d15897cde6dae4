package postgres

import (
	"context"
	"fmt"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// TokenMetadataStore implements storage.TokenMetadataStore using PostgreSQL.
type TokenMetadataStore struct {
	pool *Pool
}

// NewTokenMetadataStore creates a new TokenMetadataStore.
func NewTokenMetadataStore(pool *Pool) *TokenMetadataStore {
	return &TokenMetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// Upsert inserts or refreshes metadata for a mint. Empty fields on the
// incoming record do not clobber previously known values.
func (s *TokenMetadataStore) Upsert(ctx context.Context, m *domain.TokenMetadata) error {
	query := `
		INSERT INTO token_metadata (mint, symbol, name, decimals, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mint) DO UPDATE SET
			symbol = COALESCE(NULLIF(EXCLUDED.symbol, ''), token_metadata.symbol),
			name = COALESCE(NULLIF(EXCLUDED.name, ''), token_metadata.name),
			decimals = CASE WHEN EXCLUDED.decimals > 0 THEN EXCLUDED.decimals ELSE token_metadata.decimals END,
			last_updated = EXCLUDED.last_updated
	`

	if _, err := s.pool.Exec(ctx, query, m.Mint, m.Symbol, m.Name, m.Decimals, m.LastUpdated); err != nil {
		return fmt.Errorf("upsert token metadata: %w", err)
	}
	return nil
}

// GetByMint retrieves metadata by mint. Returns ErrNotFound if absent.
func (s *TokenMetadataStore) GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	query := `
		SELECT mint, symbol, name, decimals, last_updated
		FROM token_metadata
		WHERE mint = $1
	`

	var m domain.TokenMetadata
	err := s.pool.QueryRow(ctx, query, mint).Scan(&m.Mint, &m.Symbol, &m.Name, &m.Decimals, &m.LastUpdated)
	if err != nil {
		if errIsNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata: %w", err)
	}
	return &m, nil
}

// Reset removes all metadata.
func (s *TokenMetadataStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE token_metadata`); err != nil {
		return fmt.Errorf("reset token metadata: %w", err)
	}
	return nil
}
