// Package api exposes the query, ingress and admin surface over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pumploss/internal/ingestion"
	"pumploss/internal/leaderboard"
	"pumploss/internal/observability"
	"pumploss/internal/storage"
)

// Stores bundles every store the API reads or resets.
type Stores struct {
	Trades  storage.TradeStore
	Ledger  storage.LedgerStore
	Pnl     storage.PnlStore
	Wallets storage.WalletStore
	Tokens  storage.TokenMetadataStore
	Cache   storage.LeaderboardCacheStore
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	stores       Stores
	boards       *leaderboard.Service
	ingest       *ingestion.Service
	adminEnabled bool
	logger       *slog.Logger
}

// NewServer creates the API server. adminEnabled exposes the destructive
// admin endpoints; leave it off outside test/reset environments.
func NewServer(stores Stores, boards *leaderboard.Service, ingest *ingestion.Service, adminEnabled bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		stores:       stores,
		boards:       boards,
		ingest:       ingest,
		adminEnabled: adminEnabled,
		logger:       logger,
	}
}

// Router builds the chi router with the full route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(observability.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", observability.Handler())
	r.Post("/webhook", s.handleWebhook)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/trades/recent", s.handleRecentTrades)
		r.Get("/wallets/{address}/stats", s.handleWalletStats)
		r.Get("/wallets/{address}/trades", s.handleWalletTrades)
		r.Get("/tokens/{mint}", s.handleToken)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/leaderboard/refresh", s.handleRefresh)
			r.Post("/reset", s.handleReset)
			r.Post("/trades", s.handleDirectTrade)
			r.Post("/tokens", s.handleUpsertToken)
		})
	})

	return r
}

// requireAdmin rejects admin calls unless the server was started with admin
// endpoints enabled.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.adminEnabled {
			writeError(w, http.StatusForbidden, "admin endpoints disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
