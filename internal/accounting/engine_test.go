package accounting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
	"pumploss/internal/storage/memory"
)

const (
	testWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testMint   = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

func newTestEngine() (*Engine, *memory.TradeStore, *memory.LedgerStore, *memory.PnlStore, *memory.WalletStore) {
	trades := memory.NewTradeStore()
	ledger := memory.NewLedgerStore()
	pnl := memory.NewPnlStore()
	wallets := memory.NewWalletStore()
	return NewEngine(trades, ledger, pnl, wallets, nil), trades, ledger, pnl, wallets
}

func buyTrade(sig string, tokens, sol float64) *domain.Trade {
	return &domain.Trade{
		Signature:     sig,
		BlockTime:     1700000000,
		TraderAddress: testWallet,
		TokenMint:     testMint,
		Direction:     domain.DirectionBuy,
		Confidence:    domain.ConfidenceExact,
		TokenAmount:   tokens,
		SolAmount:     sol,
	}
}

func sellTrade(sig string, tokens, sol float64) *domain.Trade {
	t := buyTrade(sig, tokens, sol)
	t.Direction = domain.DirectionSell
	return t
}

func TestApply_BuyCreatesLedgerEntry(t *testing.T) {
	engine, _, ledger, _, _ := newTestEngine()
	ctx := context.Background()

	res, err := engine.Apply(ctx, buyTrade("sig-buy-1", 1000, 1.5))
	if err != nil {
		t.Fatalf("apply buy: %v", err)
	}
	if res.Duplicate {
		t.Error("first apply reported as duplicate")
	}
	if res.PnlEvent != nil {
		t.Error("buy produced a pnl event")
	}

	entry, err := ledger.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("get ledger entry: %v", err)
	}
	if entry.TokensHeld != 1000 {
		t.Errorf("expected 1000 tokens held, got %f", entry.TokensHeld)
	}
	if math.Abs(entry.WeightedAvgCostSol-0.0015) > 1e-12 {
		t.Errorf("expected WAC 0.0015, got %f", entry.WeightedAvgCostSol)
	}
}

func TestApply_WeightedAverageCostRebasing(t *testing.T) {
	engine, _, ledger, _, _ := newTestEngine()
	ctx := context.Background()

	// 1000 units for 1.5 SOL, then 500 units for 1.0 SOL: average cost is
	// 2.5/1500 per unit.
	if _, err := engine.Apply(ctx, buyTrade("sig-buy-1", 1000, 1.5)); err != nil {
		t.Fatalf("apply first buy: %v", err)
	}
	if _, err := engine.Apply(ctx, buyTrade("sig-buy-2", 500, 1.0)); err != nil {
		t.Fatalf("apply second buy: %v", err)
	}

	entry, err := ledger.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("get ledger entry: %v", err)
	}
	if entry.TokensHeld != 1500 {
		t.Errorf("expected 1500 tokens held, got %f", entry.TokensHeld)
	}
	wantWAC := 2.5 / 1500
	if math.Abs(entry.WeightedAvgCostSol-wantWAC) > 1e-9 {
		t.Errorf("expected WAC %.10f, got %.10f", wantWAC, entry.WeightedAvgCostSol)
	}
}

func TestApply_SellRealizesLoss(t *testing.T) {
	engine, _, ledger, _, _ := newTestEngine()
	ctx := context.Background()

	if _, err := engine.Apply(ctx, buyTrade("sig-buy-1", 1000, 1.5)); err != nil {
		t.Fatalf("apply first buy: %v", err)
	}
	if _, err := engine.Apply(ctx, buyTrade("sig-buy-2", 500, 1.0)); err != nil {
		t.Fatalf("apply second buy: %v", err)
	}

	res, err := engine.Apply(ctx, sellTrade("sig-sell-1", 800, 1.2))
	if err != nil {
		t.Fatalf("apply sell: %v", err)
	}
	if res.PnlEvent == nil {
		t.Fatal("sell produced no pnl event")
	}

	wantBasis := 800 * (2.5 / 1500)
	if math.Abs(res.PnlEvent.CostBasisSol-wantBasis) > 1e-9 {
		t.Errorf("expected cost basis %.6f, got %.6f", wantBasis, res.PnlEvent.CostBasisSol)
	}
	wantPnl := 1.2 - wantBasis
	if math.Abs(res.PnlEvent.PnlSol-wantPnl) > 1e-9 {
		t.Errorf("expected pnl %.6f, got %.6f", wantPnl, res.PnlEvent.PnlSol)
	}
	if res.PnlEvent.PnlSol >= 0 {
		t.Errorf("expected a loss, got pnl %.6f", res.PnlEvent.PnlSol)
	}
	if !res.PnlEvent.CostBasisKnown {
		t.Error("normal sell flagged as degraded")
	}

	entry, err := ledger.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("get ledger entry: %v", err)
	}
	if math.Abs(entry.TokensHeld-700) > 1e-9 {
		t.Errorf("expected 700 tokens held, got %f", entry.TokensHeld)
	}
	wantWAC := 2.5 / 1500
	if math.Abs(entry.WeightedAvgCostSol-wantWAC) > 1e-9 {
		t.Errorf("sell changed the WAC: want %.10f, got %.10f", wantWAC, entry.WeightedAvgCostSol)
	}
}

func TestApply_FullExitDeletesEntry(t *testing.T) {
	engine, _, ledger, _, _ := newTestEngine()
	ctx := context.Background()

	if _, err := engine.Apply(ctx, buyTrade("sig-buy-1", 1000, 2.0)); err != nil {
		t.Fatalf("apply buy: %v", err)
	}
	if _, err := engine.Apply(ctx, sellTrade("sig-sell-1", 1000, 1.0)); err != nil {
		t.Fatalf("apply sell: %v", err)
	}

	if _, err := ledger.Get(ctx, testWallet, testMint); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected entry to be deleted, got err=%v", err)
	}

	// A fresh buy starts the average over, uninfluenced by the old position.
	if _, err := engine.Apply(ctx, buyTrade("sig-buy-2", 100, 5.0)); err != nil {
		t.Fatalf("apply fresh buy: %v", err)
	}
	entry, err := ledger.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("get ledger entry: %v", err)
	}
	if math.Abs(entry.WeightedAvgCostSol-0.05) > 1e-12 {
		t.Errorf("expected fresh WAC 0.05, got %f", entry.WeightedAvgCostSol)
	}
}

func TestApply_InsufficientBasisDegradesToBreakEven(t *testing.T) {
	engine, _, ledger, _, _ := newTestEngine()
	ctx := context.Background()

	// No position at all.
	res, err := engine.Apply(ctx, sellTrade("sig-sell-1", 500, 2.0))
	if err != nil {
		t.Fatalf("apply sell without position: %v", err)
	}
	if res.PnlEvent == nil {
		t.Fatal("degraded sell produced no pnl event")
	}
	if res.PnlEvent.PnlSol != 0 {
		t.Errorf("expected zero pnl, got %f", res.PnlEvent.PnlSol)
	}
	if res.PnlEvent.CostBasisSol != 2.0 {
		t.Errorf("expected cost basis equal to proceeds, got %f", res.PnlEvent.CostBasisSol)
	}
	if res.PnlEvent.CostBasisKnown {
		t.Error("degraded event not flagged")
	}

	// Position smaller than the disposal: degraded as well, ledger untouched.
	if _, err := engine.Apply(ctx, buyTrade("sig-buy-1", 100, 1.0)); err != nil {
		t.Fatalf("apply buy: %v", err)
	}
	res, err = engine.Apply(ctx, sellTrade("sig-sell-2", 500, 2.0))
	if err != nil {
		t.Fatalf("apply oversized sell: %v", err)
	}
	if res.PnlEvent.CostBasisKnown {
		t.Error("oversized sell not flagged as degraded")
	}
	entry, err := ledger.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("get ledger entry: %v", err)
	}
	if entry.TokensHeld != 100 {
		t.Errorf("oversized sell changed holdings: got %f", entry.TokensHeld)
	}
}

func TestApply_DuplicateSignatureIsNoOp(t *testing.T) {
	engine, _, ledger, pnl, _ := newTestEngine()
	ctx := context.Background()

	if _, err := engine.Apply(ctx, buyTrade("sig-buy-1", 1000, 1.5)); err != nil {
		t.Fatalf("apply buy: %v", err)
	}
	if _, err := engine.Apply(ctx, sellTrade("sig-sell-1", 400, 1.0)); err != nil {
		t.Fatalf("apply sell: %v", err)
	}

	// Redeliver both.
	res, err := engine.Apply(ctx, buyTrade("sig-buy-1", 1000, 1.5))
	if err != nil {
		t.Fatalf("reapply buy: %v", err)
	}
	if !res.Duplicate {
		t.Error("redelivered buy not reported as duplicate")
	}
	res, err = engine.Apply(ctx, sellTrade("sig-sell-1", 400, 1.0))
	if err != nil {
		t.Fatalf("reapply sell: %v", err)
	}
	if !res.Duplicate {
		t.Error("redelivered sell not reported as duplicate")
	}

	entry, err := ledger.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("get ledger entry: %v", err)
	}
	if math.Abs(entry.TokensHeld-600) > 1e-9 {
		t.Errorf("duplicates changed holdings: got %f", entry.TokensHeld)
	}

	events, err := pnl.GetByWallet(ctx, testWallet)
	if err != nil {
		t.Fatalf("get pnl events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 pnl event, got %d", len(events))
	}
}

// failingPnlStore rejects the first Insert, simulating a crash between the
// ledger commit and the PNL append.
type failingPnlStore struct {
	*memory.PnlStore
	failures int
}

func (s *failingPnlStore) Insert(ctx context.Context, e *domain.RealizedPnlEvent) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("pnl store unavailable")
	}
	return s.PnlStore.Insert(ctx, e)
}

func TestApply_RedeliveryBackfillsMissingPnlEvent(t *testing.T) {
	pnl := &failingPnlStore{PnlStore: memory.NewPnlStore(), failures: 1}
	engine := NewEngine(memory.NewTradeStore(), memory.NewLedgerStore(), pnl, memory.NewWalletStore(), nil)
	ctx := context.Background()

	if _, err := engine.Apply(ctx, buyTrade("sig-buy-1", 1000, 2.0)); err != nil {
		t.Fatalf("apply buy: %v", err)
	}

	// The ledger mutation lands but the PNL append fails.
	if _, err := engine.Apply(ctx, sellTrade("sig-sell-1", 400, 1.0)); err == nil {
		t.Fatal("expected the first sell delivery to fail")
	}
	entry, err := engine.ledger.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("get ledger entry: %v", err)
	}
	if math.Abs(entry.TokensHeld-600) > 1e-9 {
		t.Fatalf("expected 600 tokens held after failed sell, got %f", entry.TokensHeld)
	}

	// Redelivery dedups on the trade log but repairs the missing event.
	res, err := engine.Apply(ctx, sellTrade("sig-sell-1", 400, 1.0))
	if err != nil {
		t.Fatalf("reapply sell: %v", err)
	}
	if !res.Duplicate {
		t.Error("redelivered sell not reported as duplicate")
	}
	if res.PnlEvent == nil {
		t.Fatal("missing pnl event not backfilled")
	}
	if res.PnlEvent.CostBasisKnown {
		t.Error("backfilled event not flagged as degraded")
	}

	events, err := pnl.GetByWallet(ctx, testWallet)
	if err != nil {
		t.Fatalf("get pnl events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 pnl event, got %d", len(events))
	}
	if events[0].PnlSol != 0 || events[0].CostBasisSol != 1.0 {
		t.Errorf("unexpected backfilled event: pnl=%f basis=%f", events[0].PnlSol, events[0].CostBasisSol)
	}

	// A further redelivery leaves the repaired log alone.
	res, err = engine.Apply(ctx, sellTrade("sig-sell-1", 400, 1.0))
	if err != nil {
		t.Fatalf("third delivery: %v", err)
	}
	if res.PnlEvent != nil {
		t.Error("third delivery reported a backfill")
	}
	events, err = pnl.GetByWallet(ctx, testWallet)
	if err != nil {
		t.Fatalf("get pnl events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 pnl event after third delivery, got %d", len(events))
	}
}

func TestApply_WalletAggregates(t *testing.T) {
	engine, _, _, _, wallets := newTestEngine()
	ctx := context.Background()

	first := buyTrade("sig-buy-1", 100, 2.0)
	first.BlockTime = 1700000000
	second := sellTrade("sig-sell-1", 50, 3.0)
	second.BlockTime = 1700000500

	if _, err := engine.Apply(ctx, first); err != nil {
		t.Fatalf("apply first: %v", err)
	}
	if _, err := engine.Apply(ctx, second); err != nil {
		t.Fatalf("apply second: %v", err)
	}

	agg, err := wallets.Get(ctx, testWallet)
	if err != nil {
		t.Fatalf("get wallet aggregate: %v", err)
	}
	if agg.TotalTrades != 2 {
		t.Errorf("expected 2 trades, got %d", agg.TotalTrades)
	}
	if math.Abs(agg.TotalVolumeSol-5.0) > 1e-9 {
		t.Errorf("expected 5.0 SOL volume, got %f", agg.TotalVolumeSol)
	}
	if agg.FirstSeen != 1700000000 || agg.LastSeen != 1700000500 {
		t.Errorf("unexpected first/last seen: %d/%d", agg.FirstSeen, agg.LastSeen)
	}
}

func TestApply_RejectsInvalidTrades(t *testing.T) {
	engine, _, _, _, _ := newTestEngine()
	ctx := context.Background()

	tests := []struct {
		name  string
		trade *domain.Trade
	}{
		{"nil trade", nil},
		{"empty signature", &domain.Trade{TraderAddress: testWallet, TokenMint: testMint, Direction: domain.DirectionBuy, TokenAmount: 1, SolAmount: 1}},
		{"zero token amount", &domain.Trade{Signature: "s", TraderAddress: testWallet, TokenMint: testMint, Direction: domain.DirectionBuy, TokenAmount: 0, SolAmount: 1}},
		{"zero sol amount", &domain.Trade{Signature: "s", TraderAddress: testWallet, TokenMint: testMint, Direction: domain.DirectionBuy, TokenAmount: 1, SolAmount: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := engine.Apply(ctx, tt.trade); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestApply_ConcurrentSellsSerializePerKey(t *testing.T) {
	engine, _, ledger, pnl, _ := newTestEngine()
	ctx := context.Background()

	// 10_000 tokens at 0.001 SOL each.
	if _, err := engine.Apply(ctx, buyTrade("sig-buy-1", 10000, 10.0)); err != nil {
		t.Fatalf("apply buy: %v", err)
	}

	const sellers = 20
	const perSell = 100.0

	var wg sync.WaitGroup
	errs := make(chan error, sellers)
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trade := sellTrade(fmt.Sprintf("sig-sell-%d", i), perSell, 0.05)
			if _, err := engine.Apply(ctx, trade); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent sell: %v", err)
	}

	entry, err := ledger.Get(ctx, testWallet, testMint)
	if err != nil {
		t.Fatalf("get ledger entry: %v", err)
	}
	want := 10000 - sellers*perSell
	if math.Abs(entry.TokensHeld-want) > 1e-6 {
		t.Errorf("expected %f tokens held, got %f", want, entry.TokensHeld)
	}

	// Each sell of 100 at 0.05 SOL against a 0.001 WAC loses 0.05 SOL.
	events, err := pnl.GetByWallet(ctx, testWallet)
	if err != nil {
		t.Fatalf("get pnl events: %v", err)
	}
	if len(events) != sellers {
		t.Fatalf("expected %d pnl events, got %d", sellers, len(events))
	}
	var total float64
	for _, ev := range events {
		if !ev.CostBasisKnown {
			t.Error("concurrent sell degraded despite sufficient basis")
		}
		total += ev.PnlSol
	}
	wantTotal := float64(sellers) * (0.05 - perSell*0.001)
	if math.Abs(total-wantTotal) > 1e-6 {
		t.Errorf("expected aggregate pnl %f, got %f", wantTotal, total)
	}
}

func TestApply_DistinctKeysProceedIndependently(t *testing.T) {
	engine, _, ledger, _, _ := newTestEngine()
	ctx := context.Background()

	otherMint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trade := buyTrade(fmt.Sprintf("sig-a-%d", i), 10, 0.1)
			_, _ = engine.Apply(ctx, trade)
		}(i)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trade := buyTrade(fmt.Sprintf("sig-b-%d", i), 10, 0.1)
			trade.TokenMint = otherMint
			_, _ = engine.Apply(ctx, trade)
		}(i)
	}
	wg.Wait()

	for _, mint := range []string{testMint, otherMint} {
		entry, err := ledger.Get(ctx, testWallet, mint)
		if err != nil {
			t.Fatalf("get ledger entry for %s: %v", mint, err)
		}
		if math.Abs(entry.TokensHeld-100) > 1e-9 {
			t.Errorf("mint %s: expected 100 tokens held, got %f", mint, entry.TokensHeld)
		}
	}
}
