// Package main runs the pumploss server: webhook and WebSocket ingestion,
// the accounting engine, the leaderboard service and the HTTP query surface
// in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"pumploss/internal/accounting"
	"pumploss/internal/api"
	"pumploss/internal/classifier"
	"pumploss/internal/config"
	"pumploss/internal/ingestion"
	"pumploss/internal/leaderboard"
	"pumploss/internal/logging"
	"pumploss/internal/storage"
	chstore "pumploss/internal/storage/clickhouse"
	"pumploss/internal/storage/memory"
	"pumploss/internal/storage/migrations"
	pgstore "pumploss/internal/storage/postgres"
	redisstore "pumploss/internal/storage/redis"
	"pumploss/internal/transport"
)

const lamportsPerSol = 1_000_000_000

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New("pumploss-server", cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, sink, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build stores: %w", err)
	}
	defer cleanup()

	engine := accounting.NewEngine(stores.Trades, stores.Ledger, stores.Pnl, stores.Wallets, logger)
	boards := leaderboard.NewService(leaderboard.NewAggregator(stores.Pnl), stores.Cache, stores.Pnl, stores.Wallets, logger)

	cls := classifier.New(classifier.Config{
		MinLamports: int64(cfg.MinTradeSol * lamportsPerSol),
		MaxLamports: int64(cfg.MaxTradeSol * lamportsPerSol),
	})
	ingest := ingestion.NewService(
		cls,
		engine,
		ingestion.NewWindowCounter(cfg.RateLimitPerMinute, time.Minute),
		ingestion.NewSampler(cfg.SampleEvery),
		cfg.BatchCap,
		sink,
		logger,
	)

	if cfg.WSEndpoint != "" {
		feed, err := transport.NewWSFeed(ctx, cfg.WSEndpoint, nil, logger)
		if err != nil {
			return fmt.Errorf("connect websocket feed: %w", err)
		}
		defer feed.Close()

		go func() {
			for batch := range feed.Batches() {
				if _, err := ingest.ProcessBatch(ctx, batch); err != nil {
					logger.Error("websocket batch failed", "error", err)
				}
			}
		}()
		logger.Info("websocket feed connected", "endpoint", cfg.WSEndpoint)
	}

	go refreshLoop(ctx, boards, cfg.CacheRefreshInterval, logger)

	server := api.NewServer(stores, boards, ingest, cfg.AdminEnabled, logger)
	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "admin", cfg.AdminEnabled)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// buildStores wires the persistence layer from config: in-memory stores when
// UseMemory is set, otherwise Postgres with migrations applied, plus an
// optional Redis leaderboard cache and an optional ClickHouse analytics sink.
func buildStores(ctx context.Context, cfg config.ServerConfig) (api.Stores, storage.AnalyticsSink, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var stores api.Stores
	if cfg.UseMemory {
		stores = api.Stores{
			Trades:  memory.NewTradeStore(),
			Ledger:  memory.NewLedgerStore(),
			Pnl:     memory.NewPnlStore(),
			Wallets: memory.NewWalletStore(),
			Tokens:  memory.NewTokenMetadataStore(),
			Cache:   memory.NewLeaderboardCacheStore(),
		}
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return api.Stores{}, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return api.Stores{}, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}

		stores = api.Stores{
			Trades:  pgstore.NewTradeStore(pool),
			Ledger:  pgstore.NewLedgerStore(pool),
			Pnl:     pgstore.NewPnlStore(pool),
			Wallets: pgstore.NewWalletStore(pool),
			Tokens:  pgstore.NewTokenMetadataStore(pool),
			Cache:   memory.NewLeaderboardCacheStore(),
		}
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		cleanups = append(cleanups, func() { rdb.Close() })
		stores.Cache = redisstore.NewLeaderboardCacheStore(rdb, cfg.CacheTTL)
	}

	var sink storage.AnalyticsSink
	if cfg.ClickHouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return api.Stores{}, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		cleanups = append(cleanups, func() { conn.Close() })

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			cleanup()
			return api.Stores{}, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		sink = chstore.NewPnlEventStore(conn)
	}

	return stores, sink, cleanup, nil
}

// refreshLoop recomputes every leaderboard period on a fixed interval so
// reads stay cheap even when no one has hit a stale cache yet.
func refreshLoop(ctx context.Context, boards *leaderboard.Service, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := boards.RefreshAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduled leaderboard refresh failed", "error", err)
			}
		}
	}
}
