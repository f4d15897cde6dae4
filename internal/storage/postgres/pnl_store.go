package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// scanPageSize bounds a single SELECT during a logical full scan.
const scanPageSize = 1000

// PnlStore implements storage.PnlStore using PostgreSQL.
type PnlStore struct {
	pool *Pool
}

// NewPnlStore creates a new PnlStore.
func NewPnlStore(pool *Pool) *PnlStore {
	return &PnlStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PnlStore = (*PnlStore)(nil)

// Insert adds a new realized-PNL event. Returns ErrDuplicateKey if an event
// for the trade signature exists.
func (s *PnlStore) Insert(ctx context.Context, e *domain.RealizedPnlEvent) error {
	query := `
		INSERT INTO realized_pnl (
			trade_signature, wallet_address, token_mint, tokens_sold, sol_received, cost_basis_sol, pnl_sol, cost_basis_known, block_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		e.TradeSignature, e.WalletAddress, e.TokenMint,
		e.TokensSold, e.SolReceived, e.CostBasisSol, e.PnlSol,
		e.CostBasisKnown, e.BlockTime,
	)
	if err != nil {
		if errIsDuplicate(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert realized pnl: %w", err)
	}
	return nil
}

// ScanSince streams events with block_time >= since in insertion order,
// paging by primary key so a single query never exceeds scanPageSize rows.
func (s *PnlStore) ScanSince(ctx context.Context, since int64, fn func(*domain.RealizedPnlEvent) error) error {
	query := `
		SELECT id, trade_signature, wallet_address, token_mint, tokens_sold, sol_received, cost_basis_sol, pnl_sol, cost_basis_known, block_time
		FROM realized_pnl
		WHERE block_time >= $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`

	var cursor int64
	for {
		rows, err := s.pool.Query(ctx, query, since, cursor, scanPageSize)
		if err != nil {
			return fmt.Errorf("scan realized pnl page: %w", err)
		}

		events, err := scanPnlEvents(rows)
		if err != nil {
			return err
		}

		for _, e := range events {
			if err := fn(e); err != nil {
				return err
			}
			cursor = e.ID
		}

		if len(events) < scanPageSize {
			return nil
		}
	}
}

// GetByWallet retrieves all events for a wallet.
func (s *PnlStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.RealizedPnlEvent, error) {
	query := `
		SELECT id, trade_signature, wallet_address, token_mint, tokens_sold, sol_received, cost_basis_sol, pnl_sol, cost_basis_known, block_time
		FROM realized_pnl
		WHERE wallet_address = $1
		ORDER BY block_time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get realized pnl by wallet: %w", err)
	}
	defer rows.Close()

	return scanPnlEvents(rows)
}

// Reset removes all events.
func (s *PnlStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE realized_pnl RESTART IDENTITY`); err != nil {
		return fmt.Errorf("reset realized pnl: %w", err)
	}
	return nil
}

// scanPnlEvents scans multiple rows into a slice of RealizedPnlEvent.
func scanPnlEvents(rows pgx.Rows) ([]*domain.RealizedPnlEvent, error) {
	defer rows.Close()

	var events []*domain.RealizedPnlEvent

	for rows.Next() {
		var e domain.RealizedPnlEvent

		err := rows.Scan(
			&e.ID, &e.TradeSignature, &e.WalletAddress, &e.TokenMint,
			&e.TokensSold, &e.SolReceived, &e.CostBasisSol, &e.PnlSol,
			&e.CostBasisKnown, &e.BlockTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan realized pnl row: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate realized pnl rows: %w", err)
	}

	return events, nil
}
