package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumploss/internal/domain"
	"pumploss/internal/storage"
	"pumploss/internal/storage/postgres"
)

func TestTradeStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeStore(pool)
	ctx := context.Background()

	t.Run("InsertAndGet", func(t *testing.T) {
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
		require.NoError(t, store.Insert(ctx, trade))

		got, err := store.GetBySignature(ctx, "sig1")
		require.NoError(t, err)
		assert.Equal(t, "wallet1", got.TraderAddress)
		assert.Equal(t, domain.DirectionBuy, got.Direction)
		assert.Equal(t, domain.ConfidenceExact, got.Confidence)
		assert.InDelta(t, 2.5, got.SolAmount, 1e-9)
		assert.NotZero(t, got.ID)
		assert.NotZero(t, got.CreatedAt)
	})

	t.Run("DuplicateSignature", func(t *testing.T) {
		trade := &domain.Trade{
			Signature: "sig1", BlockTime: 1, TraderAddress: "x", TokenMint: "y",
			Direction: domain.DirectionBuy, Confidence: domain.ConfidenceExact,
			TokenAmount: 1, SolAmount: 1,
		}
		err := store.Insert(ctx, trade)
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("GetBySignatureNotFound", func(t *testing.T) {
		_, err := store.GetBySignature(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("GetByWalletNewestFirst", func(t *testing.T) {
		for i, bt := range []int64{3000, 1000, 2000} {
			require.NoError(t, store.Insert(ctx, &domain.Trade{
				Signature: "w1-" + string(rune('a'+i)), BlockTime: bt,
				TraderAddress: "walletW", TokenMint: "mint1",
				Direction: domain.DirectionSell, Confidence: domain.ConfidenceExact,
				TokenAmount: 10, SolAmount: 1.5,
			}))
		}

		trades, err := store.GetByWallet(ctx, "walletW", 2)
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, int64(3000), trades[0].BlockTime)
		assert.Equal(t, int64(2000), trades[1].BlockTime)
	})

	t.Run("GetRecent", func(t *testing.T) {
		trades, err := store.GetRecent(ctx, 100)
		require.NoError(t, err)
		assert.NotEmpty(t, trades)
		for i := 1; i < len(trades); i++ {
			assert.GreaterOrEqual(t, trades[i-1].BlockTime, trades[i].BlockTime)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		require.NoError(t, store.Reset(ctx))
		trades, err := store.GetRecent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, trades)
	})
}
