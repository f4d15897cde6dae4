// Package accounting applies classified trades to the cost-basis ledger
// exactly once and derives realized PNL for sells.
package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pumploss/internal/domain"
	"pumploss/internal/observability"
	"pumploss/internal/storage"
)

// maxConflictRetries bounds how often a ledger write conflict is retried
// before the trade is surfaced as a processing error. The trade log entry
// survives either way.
const maxConflictRetries = 3

// dustEpsilon absorbs float rounding around position boundaries: a remainder
// at or below it counts as a full exit, and a disposal may exceed holdings by
// at most this much before it counts as insufficient basis.
const dustEpsilon = 1e-9

// Result is the outcome of applying one trade.
type Result struct {
	Trade *domain.Trade
	// Duplicate is true when the signature was already in the trade log and
	// the call was an idempotent no-op.
	Duplicate bool
	// PnlEvent is set for sells, including degraded ones, and for duplicate
	// sells whose missing event was backfilled. Nil otherwise.
	PnlEvent *domain.RealizedPnlEvent
}

// Engine serializes trade application per (wallet, mint) key and keeps the
// ledger, trade log and PNL log consistent with each other.
type Engine struct {
	trades  storage.TradeStore
	ledger  storage.LedgerStore
	pnl     storage.PnlStore
	wallets storage.WalletStore
	locks   *keyLock
	logger  *slog.Logger
}

// NewEngine creates an Engine over the given stores.
func NewEngine(trades storage.TradeStore, ledger storage.LedgerStore, pnl storage.PnlStore, wallets storage.WalletStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		trades:  trades,
		ledger:  ledger,
		pnl:     pnl,
		wallets: wallets,
		locks:   newKeyLock(),
		logger:  logger,
	}
}

// Apply records the trade and applies it to the ledger.
//
// The trade insert doubles as the dedup check: a unique-signature violation
// means the trade was applied before and the prior trade row is returned
// unchanged. After the insert the ledger mutation commits first and the PNL
// append follows, so the ledger is the source of truth for "applied". A
// crash between the two leaves a sell in the ledger without its event;
// redelivery detects the gap through the PNL log's signature uniqueness and
// backfills a break-even event for it.
//
// Ledger write conflicts are retried up to maxConflictRetries; the trade log
// entry survives a retry exhaustion.
func (e *Engine) Apply(ctx context.Context, trade *domain.Trade) (*Result, error) {
	if err := validateTrade(trade); err != nil {
		return nil, err
	}

	key := trade.TraderAddress + "|" + trade.TokenMint
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	if err := e.trades.Insert(ctx, trade); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			existing, getErr := e.trades.GetBySignature(ctx, trade.Signature)
			if getErr != nil {
				return nil, fmt.Errorf("fetch duplicate trade %s: %w", trade.Signature, getErr)
			}
			res := &Result{Trade: existing, Duplicate: true}
			if existing.Direction == domain.DirectionSell {
				backfilled, bfErr := e.backfillPnlEvent(ctx, existing)
				if bfErr != nil {
					return nil, fmt.Errorf("backfill pnl event for %s: %w", trade.Signature, bfErr)
				}
				res.PnlEvent = backfilled
			}
			return res, nil
		}
		return nil, fmt.Errorf("insert trade %s: %w", trade.Signature, err)
	}

	// Wallet aggregates are bookkeeping, not an accounting invariant; a
	// failure here must not lose the ledger mutation.
	if err := e.wallets.RecordTrade(ctx, trade.TraderAddress, trade.BlockTime, trade.SolAmount); err != nil {
		e.logger.Warn("record wallet aggregate failed",
			"wallet", trade.TraderAddress, "signature", trade.Signature, "error", err)
	}

	var event *domain.RealizedPnlEvent
	for attempt := 1; ; attempt++ {
		var err error
		switch trade.Direction {
		case domain.DirectionBuy:
			err = e.applyBuy(ctx, trade)
		case domain.DirectionSell:
			event, err = e.applySell(ctx, trade)
		default:
			return nil, fmt.Errorf("%w: direction %q", storage.ErrInvalidInput, trade.Direction)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrConflict) || attempt >= maxConflictRetries {
			return nil, fmt.Errorf("apply %s trade %s: %w", trade.Direction, trade.Signature, err)
		}
		e.logger.Warn("ledger write conflict, retrying",
			"signature", trade.Signature, "attempt", attempt)
	}

	if event != nil {
		if err := e.pnl.Insert(ctx, event); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("insert pnl event for %s: %w", trade.Signature, err)
		}
	}

	return &Result{Trade: trade, PnlEvent: event}, nil
}

// backfillPnlEvent repairs a sell that committed its ledger mutation but
// never reached the PNL append. The cost basis at sell time is unrecoverable
// once the ledger moved, so the replacement event is the break-even degraded
// form. Returns nil when the log already holds the event, which is the
// normal redelivery case.
func (e *Engine) backfillPnlEvent(ctx context.Context, t *domain.Trade) (*domain.RealizedPnlEvent, error) {
	event := &domain.RealizedPnlEvent{
		TradeSignature: t.Signature,
		WalletAddress:  t.TraderAddress,
		TokenMint:      t.TokenMint,
		TokensSold:     t.TokenAmount,
		SolReceived:    t.SolAmount,
		CostBasisSol:   t.SolAmount,
		PnlSol:         0,
		CostBasisKnown: false,
		BlockTime:      t.BlockTime,
	}
	if err := e.pnl.Insert(ctx, event); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, nil
		}
		return nil, err
	}
	e.logger.Warn("backfilled missing pnl event for redelivered sell",
		"wallet", t.TraderAddress, "signature", t.Signature)
	observability.RecordDegradedPnl()
	return event, nil
}

// applyBuy blends the purchase into the position's weighted average cost.
func (e *Engine) applyBuy(ctx context.Context, t *domain.Trade) error {
	entry, err := e.ledger.Get(ctx, t.TraderAddress, t.TokenMint)
	if errors.Is(err, storage.ErrNotFound) {
		return e.ledger.Create(ctx, &domain.LedgerEntry{
			WalletAddress:      t.TraderAddress,
			TokenMint:          t.TokenMint,
			TokensHeld:         t.TokenAmount,
			WeightedAvgCostSol: t.SolAmount / t.TokenAmount,
			LastUpdated:        t.BlockTime,
		})
	}
	if err != nil {
		return fmt.Errorf("get ledger entry: %w", err)
	}

	newHeld := entry.TokensHeld + t.TokenAmount
	entry.WeightedAvgCostSol = (entry.TokensHeld*entry.WeightedAvgCostSol + t.SolAmount) / newHeld
	entry.TokensHeld = newHeld
	entry.LastUpdated = t.BlockTime
	return e.ledger.Update(ctx, entry)
}

// applySell reduces the position and derives the realized PNL event.
// The average cost never changes on a sell; only the quantity drops. A sell
// with no position, or one larger than the position, yields a break-even
// event flagged via CostBasisKnown=false and leaves the ledger untouched.
func (e *Engine) applySell(ctx context.Context, t *domain.Trade) (*domain.RealizedPnlEvent, error) {
	entry, err := e.ledger.Get(ctx, t.TraderAddress, t.TokenMint)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}

	if entry == nil || entry.TokensHeld+dustEpsilon < t.TokenAmount {
		e.logger.Warn("sell without sufficient cost basis, recording break-even",
			"wallet", t.TraderAddress, "mint", t.TokenMint, "signature", t.Signature)
		observability.RecordDegradedPnl()
		return &domain.RealizedPnlEvent{
			TradeSignature: t.Signature,
			WalletAddress:  t.TraderAddress,
			TokenMint:      t.TokenMint,
			TokensSold:     t.TokenAmount,
			SolReceived:    t.SolAmount,
			CostBasisSol:   t.SolAmount,
			PnlSol:         0,
			CostBasisKnown: false,
			BlockTime:      t.BlockTime,
		}, nil
	}

	costBasis := t.TokenAmount * entry.WeightedAvgCostSol
	remaining := entry.TokensHeld - t.TokenAmount

	if remaining <= dustEpsilon {
		// Full exit: the entry goes away and the next buy starts a fresh
		// average.
		err = e.ledger.Delete(ctx, t.TraderAddress, t.TokenMint, entry.Version)
	} else {
		entry.TokensHeld = remaining
		entry.LastUpdated = t.BlockTime
		err = e.ledger.Update(ctx, entry)
	}
	if err != nil {
		return nil, fmt.Errorf("reduce ledger entry: %w", err)
	}

	return &domain.RealizedPnlEvent{
		TradeSignature: t.Signature,
		WalletAddress:  t.TraderAddress,
		TokenMint:      t.TokenMint,
		TokensSold:     t.TokenAmount,
		SolReceived:    t.SolAmount,
		CostBasisSol:   costBasis,
		PnlSol:         t.SolAmount - costBasis,
		CostBasisKnown: true,
		BlockTime:      t.BlockTime,
	}, nil
}

func validateTrade(t *domain.Trade) error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: nil trade", storage.ErrInvalidInput)
	case t.Signature == "":
		return fmt.Errorf("%w: empty signature", storage.ErrInvalidInput)
	case t.TraderAddress == "":
		return fmt.Errorf("%w: empty trader address", storage.ErrInvalidInput)
	case t.TokenMint == "":
		return fmt.Errorf("%w: empty token mint", storage.ErrInvalidInput)
	case t.TokenAmount <= 0:
		return fmt.Errorf("%w: token amount must be positive", storage.ErrInvalidInput)
	case t.SolAmount <= 0:
		return fmt.Errorf("%w: sol amount must be positive", storage.ErrInvalidInput)
	}
	return nil
}
