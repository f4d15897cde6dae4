package clickhouse

import (
	"context"
	"fmt"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

// PnlEventStore mirrors realized-PNL events into ClickHouse for ad-hoc
// analysis. The ReplacingMergeTree table absorbs redelivered events, so
// inserts skip explicit duplicate checks.
type PnlEventStore struct {
	conn *Conn
}

// NewPnlEventStore creates a new PnlEventStore.
func NewPnlEventStore(conn *Conn) *PnlEventStore {
	return &PnlEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AnalyticsSink = (*PnlEventStore)(nil)

// InsertEvents appends a batch of realized-PNL events.
func (s *PnlEventStore) InsertEvents(ctx context.Context, events []*domain.RealizedPnlEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO realized_pnl_events (
			trade_signature, wallet_address, token_mint, tokens_sold, sol_received, cost_basis_sol, pnl_sol, cost_basis_known, block_time
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		var known uint8
		if e.CostBasisKnown {
			known = 1
		}
		err = batch.Append(
			e.TradeSignature, e.WalletAddress, e.TokenMint,
			e.TokensSold, e.SolReceived, e.CostBasisSol, e.PnlSol,
			known, e.BlockTime,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// TotalLossByWallet returns the sum of negative pnl_sol for a wallet.
// FINAL collapses ReplacingMergeTree duplicates before aggregation.
func (s *PnlEventStore) TotalLossByWallet(ctx context.Context, wallet string) (float64, error) {
	query := `
		SELECT sum(pnl_sol) FROM realized_pnl_events FINAL
		WHERE wallet_address = ? AND pnl_sol < 0
	`

	var total float64
	if err := s.conn.QueryRow(ctx, query, wallet).Scan(&total); err != nil {
		return 0, fmt.Errorf("query total loss by wallet: %w", err)
	}
	return total, nil
}
