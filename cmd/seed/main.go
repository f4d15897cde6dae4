// Package main seeds a deterministic trading scenario through the
// accounting engine: two wallets buy and then sell at a loss, so the
// leaderboard has something to rank in a fresh environment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/mr-tron/base58"

	"pumploss/internal/accounting"
	"pumploss/internal/classifier"
	"pumploss/internal/config"
	"pumploss/internal/domain"
	"pumploss/internal/ingestion"
	"pumploss/internal/logging"
	"pumploss/internal/storage/migrations"
	pgstore "pumploss/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	reset := flag.Bool("reset", false, "wipe trades, ledger, pnl, wallet and cache data before seeding")
	flag.Parse()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New("pumploss-seed", cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	trades := pgstore.NewTradeStore(pool)
	ledger := pgstore.NewLedgerStore(pool)
	pnl := pgstore.NewPnlStore(pool)
	wallets := pgstore.NewWalletStore(pool)

	if *reset {
		for _, fn := range []func(context.Context) error{
			trades.Reset, ledger.Reset, pnl.Reset, wallets.Reset,
		} {
			if err := fn(ctx); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		logger.Info("existing data wiped")
	}

	engine := accounting.NewEngine(trades, ledger, pnl, wallets, logger)
	ingest := ingestion.NewService(classifier.New(classifier.DefaultConfig()), engine, nil, nil, 0, nil, logger)

	now := time.Now().Unix()
	traderA, traderB := seedAddr(1), seedAddr(2)
	mintA, mintB := seedAddr(11), seedAddr(12)

	// Trader A: 5.4 SOL into 1800 tokens, exits in two losing sells.
	// Trader B: 2.0 SOL into 500 tokens, one losing sell.
	seedTrades := []*domain.Trade{
		trade("seed_a_buy", now-86400, traderA, mintA, domain.DirectionBuy, 1800, 5.4),
		trade("seed_a_sell_1", now-3600, traderA, mintA, domain.DirectionSell, 1000, 2.5),
		trade("seed_a_sell_2", now-1800, traderA, mintA, domain.DirectionSell, 800, 1.2),
		trade("seed_b_buy", now-43200, traderB, mintB, domain.DirectionBuy, 500, 2.0),
		trade("seed_b_sell", now-7200, traderB, mintB, domain.DirectionSell, 500, 1.8),
	}

	for _, t := range seedTrades {
		res, err := ingest.ApplyDirect(ctx, t)
		if err != nil {
			return fmt.Errorf("apply %s: %w", t.Signature, err)
		}
		if res.Duplicate {
			logger.Info("already seeded", "signature", t.Signature)
		}
	}

	logger.Info("seed complete", "trades", len(seedTrades), "wallets", 2)
	return nil
}

func trade(sig string, blockTime int64, wallet, mint string, dir domain.Direction, tokens, sol float64) *domain.Trade {
	return &domain.Trade{
		Signature:     sig,
		BlockTime:     blockTime,
		TraderAddress: wallet,
		TokenMint:     mint,
		Direction:     dir,
		Confidence:    domain.ConfidenceExact,
		TokenAmount:   tokens,
		SolAmount:     sol,
	}
}

// seedAddr derives a stable base58 address from a tag byte.
func seedAddr(tag byte) string {
	b := make([]byte, 32)
	b[0] = 0x5e
	b[31] = tag
	return base58.Encode(b)
}
