package postgres

import (
	"context"
	"fmt"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// Get retrieves aggregates for a wallet. Returns ErrNotFound if absent.
func (s *WalletStore) Get(ctx context.Context, address string) (*domain.WalletAggregate, error) {
	query := `
		SELECT address, first_seen, last_seen, total_trades, total_volume_sol
		FROM wallets
		WHERE address = $1
	`

	var w domain.WalletAggregate
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&w.Address, &w.FirstSeen, &w.LastSeen, &w.TotalTrades, &w.TotalVolumeSol,
	)
	if err != nil {
		if errIsNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

// RecordTrade upserts the wallet row for one accepted trade.
func (s *WalletStore) RecordTrade(ctx context.Context, address string, blockTime int64, solAmount float64) error {
	query := `
		INSERT INTO wallets (address, first_seen, last_seen, total_trades, total_volume_sol)
		VALUES ($1, $2, $2, 1, $3)
		ON CONFLICT (address) DO UPDATE SET
			last_seen = GREATEST(wallets.last_seen, EXCLUDED.last_seen),
			total_trades = wallets.total_trades + 1,
			total_volume_sol = wallets.total_volume_sol + EXCLUDED.total_volume_sol
	`

	if _, err := s.pool.Exec(ctx, query, address, blockTime, solAmount); err != nil {
		return fmt.Errorf("record wallet trade: %w", err)
	}
	return nil
}

// Reset removes all aggregates.
func (s *WalletStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE wallets`); err != nil {
		return fmt.Errorf("reset wallets: %w", err)
	}
	return nil
}
