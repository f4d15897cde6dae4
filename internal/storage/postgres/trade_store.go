package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if the signature exists.
// The unique constraint on signature makes the dedup check and the insert
// atomic under concurrent duplicate deliveries.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (
			signature, block_time, trader_address, token_mint, direction, confidence, token_amount, sol_amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, EXTRACT(EPOCH FROM now())::BIGINT)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Signature,
		t.BlockTime,
		t.TraderAddress,
		t.TokenMint,
		t.Direction,
		t.Confidence,
		t.TokenAmount,
		t.SolAmount,
	)
	if err != nil {
		if errIsDuplicate(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetBySignature retrieves a trade by signature. Returns ErrNotFound if absent.
func (s *TradeStore) GetBySignature(ctx context.Context, signature string) (*domain.Trade, error) {
	query := `
		SELECT id, signature, block_time, trader_address, token_mint, direction, confidence, token_amount, sol_amount, created_at
		FROM trades
		WHERE signature = $1
	`

	var t domain.Trade
	err := s.pool.QueryRow(ctx, query, signature).Scan(
		&t.ID, &t.Signature, &t.BlockTime, &t.TraderAddress, &t.TokenMint,
		&t.Direction, &t.Confidence, &t.TokenAmount, &t.SolAmount, &t.CreatedAt,
	)
	if err != nil {
		if errIsNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by signature: %w", err)
	}
	return &t, nil
}

// GetByWallet retrieves up to limit trades for a wallet, newest first.
func (s *TradeStore) GetByWallet(ctx context.Context, wallet string, limit int) ([]*domain.Trade, error) {
	query := `
		SELECT id, signature, block_time, trader_address, token_mint, direction, confidence, token_amount, sol_amount, created_at
		FROM trades
		WHERE trader_address = $1
		ORDER BY block_time DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("get trades by wallet: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetRecent retrieves up to limit trades across all wallets, newest first.
func (s *TradeStore) GetRecent(ctx context.Context, limit int) ([]*domain.Trade, error) {
	query := `
		SELECT id, signature, block_time, trader_address, token_mint, direction, confidence, token_amount, sol_amount, created_at
		FROM trades
		ORDER BY block_time DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// Reset removes all trades.
func (s *TradeStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE trades RESTART IDENTITY`); err != nil {
		return fmt.Errorf("reset trades: %w", err)
	}
	return nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade

		err := rows.Scan(
			&t.ID, &t.Signature, &t.BlockTime, &t.TraderAddress, &t.TokenMint,
			&t.Direction, &t.Confidence, &t.TokenAmount, &t.SolAmount, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
