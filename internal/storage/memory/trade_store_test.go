package memory

import (
	"context"
	"errors"
	"testing"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

func TestTradeStore_InsertAndGet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trade := &domain.Trade{
		Signature:     "sig1",
		BlockTime:     1700000000,
		TraderAddress: "wallet1",
		TokenMint:     "mint1",
		Direction:     domain.DirectionBuy,
		Confidence:    domain.ConfidenceExact,
		TokenAmount:   1000,
		SolAmount:     2.5,
	}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetBySignature(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetBySignature failed: %v", err)
	}
	if result.SolAmount != 2.5 {
		t.Errorf("SolAmount mismatch: got %f, want 2.5", result.SolAmount)
	}
	if result.ID == 0 {
		t.Error("Expected assigned ID")
	}
}

func TestTradeStore_DuplicateSignature(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trade := &domain.Trade{Signature: "sig1", TraderAddress: "w", TokenMint: "m"}
	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, trade)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_GetBySignatureNotFound(t *testing.T) {
	store := NewTradeStore()

	_, err := store.GetBySignature(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTradeStore_GetByWalletNewestFirst(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trades := []*domain.Trade{
		{Signature: "s1", TraderAddress: "w1", BlockTime: 1000},
		{Signature: "s2", TraderAddress: "w1", BlockTime: 3000},
		{Signature: "s3", TraderAddress: "w1", BlockTime: 2000},
		{Signature: "s4", TraderAddress: "w2", BlockTime: 4000},
	}
	for _, tr := range trades {
		if err := store.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert %s failed: %v", tr.Signature, err)
		}
	}

	result, err := store.GetByWallet(ctx, "w1", 10)
	if err != nil {
		t.Fatalf("GetByWallet failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 trades, got %d", len(result))
	}
	for i := 1; i < len(result); i++ {
		if result[i].BlockTime > result[i-1].BlockTime {
			t.Errorf("Results not newest-first: %d after %d", result[i].BlockTime, result[i-1].BlockTime)
		}
	}
}

func TestTradeStore_GetRecentLimit(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		trade := &domain.Trade{
			Signature: string(rune('a' + i)),
			BlockTime: int64(1000 + i),
		}
		if err := store.Insert(ctx, trade); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.GetRecent(ctx, 2)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(result))
	}
	if result[0].BlockTime != 1004 {
		t.Errorf("Expected newest trade first, got block time %d", result[0].BlockTime)
	}
}

func TestTradeStore_Reset(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.Trade{Signature: "s1"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	result, _ := store.GetRecent(ctx, 10)
	if len(result) != 0 {
		t.Errorf("Expected empty store after reset, got %d trades", len(result))
	}
}
