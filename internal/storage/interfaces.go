package storage

import (
	"context"

	"pumploss/internal/domain"
)

// TradeStore provides access to the append-only trade log.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if the signature exists.
	// The existence check and the insert are atomic with respect to
	// concurrent duplicate deliveries of the same signature.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetBySignature retrieves a trade by signature. Returns ErrNotFound if absent.
	GetBySignature(ctx context.Context, signature string) (*domain.Trade, error)

	// GetByWallet retrieves up to limit trades for a wallet, newest first.
	GetByWallet(ctx context.Context, wallet string, limit int) ([]*domain.Trade, error)

	// GetRecent retrieves up to limit trades across all wallets, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.Trade, error)

	// Reset removes all trades. Destructive; test/reset environments only.
	Reset(ctx context.Context) error
}

// LedgerStore provides access to per-wallet, per-token positions.
// All writers go through the accounting engine's per-key serialization;
// version checks guard against writers that bypass it.
type LedgerStore interface {
	// Get retrieves the entry for (wallet, mint). Returns ErrNotFound if absent.
	Get(ctx context.Context, wallet, mint string) (*domain.LedgerEntry, error)

	// Create inserts a new entry with Version 1. Returns ErrConflict if the
	// key already exists (a concurrent writer created it first).
	Create(ctx context.Context, e *domain.LedgerEntry) error

	// Update overwrites the entry only if the stored version equals
	// e.Version, then bumps the version. Returns ErrConflict otherwise.
	Update(ctx context.Context, e *domain.LedgerEntry) error

	// Delete removes the entry only if the stored version matches.
	// Returns ErrConflict on version mismatch, ErrNotFound if absent.
	Delete(ctx context.Context, wallet, mint string, version int64) error

	// Reset removes all entries. Destructive; test/reset environments only.
	Reset(ctx context.Context) error
}

// PnlStore provides access to the append-only realized-PNL log.
type PnlStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if an event for the
	// trade signature exists.
	Insert(ctx context.Context, e *domain.RealizedPnlEvent) error

	// ScanSince streams every event with BlockTime >= since (all events when
	// since == 0) in insertion order, paging through the underlying store so
	// a single call never exceeds the store's row ceiling. fn returning an
	// error stops the scan.
	ScanSince(ctx context.Context, since int64, fn func(*domain.RealizedPnlEvent) error) error

	// GetByWallet retrieves all events for a wallet.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.RealizedPnlEvent, error)

	// Reset removes all events. Destructive; test/reset environments only.
	Reset(ctx context.Context) error
}

// WalletStore provides access to per-wallet aggregates.
type WalletStore interface {
	// Get retrieves aggregates for a wallet. Returns ErrNotFound if absent.
	Get(ctx context.Context, address string) (*domain.WalletAggregate, error)

	// RecordTrade upserts the wallet row: first/last seen, trade count and
	// cumulative SOL volume.
	RecordTrade(ctx context.Context, address string, blockTime int64, solAmount float64) error

	// Reset removes all aggregates. Destructive; test/reset environments only.
	Reset(ctx context.Context) error
}

// TokenMetadataStore provides access to token display metadata.
type TokenMetadataStore interface {
	// Upsert inserts or refreshes metadata for a mint.
	Upsert(ctx context.Context, m *domain.TokenMetadata) error

	// GetByMint retrieves metadata by mint. Returns ErrNotFound if absent.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error)

	// Reset removes all metadata. Destructive; test/reset environments only.
	Reset(ctx context.Context) error
}

// LeaderboardCacheStore holds the last computed leaderboard per period.
type LeaderboardCacheStore interface {
	// Get retrieves the cached leaderboard for a period. Returns ErrNotFound
	// if the period was never computed.
	Get(ctx context.Context, period domain.Period) (*domain.CachedLeaderboard, error)

	// Put overwrites the cache record for cached.Period.
	Put(ctx context.Context, cached *domain.CachedLeaderboard) error

	// Reset removes all cache records.
	Reset(ctx context.Context) error
}

// AnalyticsSink mirrors realized-PNL events into a columnar store for
// ad-hoc analysis. Best-effort: the accounting pipeline does not depend on it.
type AnalyticsSink interface {
	// InsertEvents appends a batch of realized-PNL events.
	InsertEvents(ctx context.Context, events []*domain.RealizedPnlEvent) error

	// TotalLossByWallet returns the sum of negative PnlSol for a wallet.
	TotalLossByWallet(ctx context.Context, wallet string) (float64, error)
}
