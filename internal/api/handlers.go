package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pumploss/internal/classifier"
	"pumploss/internal/domain"
	"pumploss/internal/storage"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 1000
	defaultTradesLimit      = 50
	maxTradesLimit          = 500
)

// tradeResponse is the wire shape of one trade.
type tradeResponse struct {
	Signature     string  `json:"signature"`
	BlockTime     int64   `json:"blockTime"`
	TraderAddress string  `json:"traderAddress"`
	TokenMint     string  `json:"tokenMint"`
	Direction     string  `json:"direction"`
	Confidence    string  `json:"confidence"`
	TokenAmount   float64 `json:"tokenAmount"`
	SolAmount     float64 `json:"solAmount"`
}

func toTradeResponses(trades []*domain.Trade) []tradeResponse {
	out := make([]tradeResponse, len(trades))
	for i, t := range trades {
		out[i] = tradeResponse{
			Signature:     t.Signature,
			BlockTime:     t.BlockTime,
			TraderAddress: t.TraderAddress,
			TokenMint:     t.TokenMint,
			Direction:     string(t.Direction),
			Confidence:    string(t.Confidence),
			TokenAmount:   t.TokenAmount,
			SolAmount:     t.SolAmount,
		}
	}
	return out
}

// tokenResponse is the wire shape of token metadata.
type tokenResponse struct {
	Mint        string `json:"mint"`
	Symbol      string `json:"symbol,omitempty"`
	Name        string `json:"name,omitempty"`
	Decimals    int    `json:"decimals"`
	LastUpdated int64  `json:"lastUpdated"`
}

// GET /v1/leaderboard?period=&limit=
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := domain.ParsePeriod(queryOrDefault(r, "period", string(domain.Period24h)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryLimit(r, defaultLeaderboardLimit, maxLeaderboardLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.boards.GetLeaderboard(r.Context(), period, limit)
	if err != nil {
		s.logger.Error("leaderboard query failed", "period", period, "error", err)
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":  period,
		"entries": entries,
	})
}

// GET /v1/wallets/{address}/stats
func (s *Server) handleWalletStats(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	stats, err := s.boards.WalletStats(r.Context(), address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "wallet not found")
			return
		}
		s.logger.Error("wallet stats query failed", "wallet", address, "error", err)
		writeError(w, http.StatusInternalServerError, "wallet stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /v1/wallets/{address}/trades?limit=
func (s *Server) handleWalletTrades(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	limit, err := queryLimit(r, defaultTradesLimit, maxTradesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trades, err := s.stores.Trades.GetByWallet(r.Context(), address, limit)
	if err != nil {
		s.logger.Error("wallet trades query failed", "wallet", address, "error", err)
		writeError(w, http.StatusInternalServerError, "trades unavailable")
		return
	}
	writeJSON(w, http.StatusOK, toTradeResponses(trades))
}

// GET /v1/trades/recent?limit=
func (s *Server) handleRecentTrades(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, defaultTradesLimit, maxTradesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trades, err := s.stores.Trades.GetRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("recent trades query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "trades unavailable")
		return
	}
	writeJSON(w, http.StatusOK, toTradeResponses(trades))
}

// GET /v1/tokens/{mint}
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	mint := chi.URLParam(r, "mint")

	meta, err := s.stores.Tokens.GetByMint(r.Context(), mint)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "token not found")
			return
		}
		s.logger.Error("token query failed", "mint", mint, "error", err)
		writeError(w, http.StatusInternalServerError, "token unavailable")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Mint:        meta.Mint,
		Symbol:      meta.Symbol,
		Name:        meta.Name,
		Decimals:    meta.Decimals,
		LastUpdated: meta.LastUpdated,
	})
}

// POST /webhook accepts a JSON array of enhanced-transaction payloads (or a
// single object) and runs the batch through ingestion. Rate-limited batches
// still answer 200 with rateLimited=true so the upstream does not
// retry-storm.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payloads, err := decodePayloads(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.ingest.ProcessBatch(r.Context(), payloads)
	if err != nil {
		s.logger.Error("webhook batch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// directTradeRequest is the backfill/manual ingress shape: an
// already-classified trade.
type directTradeRequest struct {
	Signature     string  `json:"signature"`
	BlockTime     int64   `json:"blockTime"`
	TraderAddress string  `json:"traderAddress"`
	TokenMint     string  `json:"tokenMint"`
	Direction     string  `json:"direction"`
	TokenAmount   float64 `json:"tokenAmount"`
	SolAmount     float64 `json:"solAmount"`
}

// POST /v1/admin/trades
func (s *Server) handleDirectTrade(w http.ResponseWriter, r *http.Request) {
	var req directTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade body")
		return
	}
	if req.Direction != string(domain.DirectionBuy) && req.Direction != string(domain.DirectionSell) {
		writeError(w, http.StatusBadRequest, "direction must be BUY or SELL")
		return
	}

	trade := &domain.Trade{
		Signature:     req.Signature,
		BlockTime:     req.BlockTime,
		TraderAddress: req.TraderAddress,
		TokenMint:     req.TokenMint,
		Direction:     domain.Direction(req.Direction),
		Confidence:    domain.ConfidenceExact,
		TokenAmount:   req.TokenAmount,
		SolAmount:     req.SolAmount,
	}
	res, err := s.ingest.ApplyDirect(r.Context(), trade)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("direct trade failed", "signature", req.Signature, "error", err)
		writeError(w, http.StatusInternalServerError, "apply failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signature": res.Trade.Signature,
		"duplicate": res.Duplicate,
	})
}

// POST /v1/admin/tokens upserts display metadata for a mint. Empty fields
// leave previously known values in place.
func (s *Server) handleUpsertToken(w http.ResponseWriter, r *http.Request) {
	var req tokenResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid token body")
		return
	}
	if req.Mint == "" {
		writeError(w, http.StatusBadRequest, "mint is required")
		return
	}

	meta := &domain.TokenMetadata{
		Mint:        req.Mint,
		Symbol:      req.Symbol,
		Name:        req.Name,
		Decimals:    req.Decimals,
		LastUpdated: time.Now().Unix(),
	}
	if err := s.stores.Tokens.Upsert(r.Context(), meta); err != nil {
		s.logger.Error("token upsert failed", "mint", req.Mint, "error", err)
		writeError(w, http.StatusInternalServerError, "upsert failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mint": req.Mint})
}

// POST /v1/admin/leaderboard/refresh?period=
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := queryOrDefault(r, "period", "")
	if raw == "" {
		if err := s.boards.RefreshAll(r.Context()); err != nil {
			s.logger.Error("leaderboard refresh failed", "error", err)
			writeError(w, http.StatusInternalServerError, "refresh failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"refreshed": "all"})
		return
	}

	period, err := domain.ParsePeriod(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.boards.Refresh(r.Context(), period); err != nil {
		s.logger.Error("leaderboard refresh failed", "period", period, "error", err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"refreshed": string(period)})
}

// POST /v1/admin/reset wipes every collection. Destructive; gated behind
// the admin flag and meant for test/reset environments only.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resets := []struct {
		name string
		fn   func() error
	}{
		{"trades", func() error { return s.stores.Trades.Reset(ctx) }},
		{"ledger", func() error { return s.stores.Ledger.Reset(ctx) }},
		{"pnl", func() error { return s.stores.Pnl.Reset(ctx) }},
		{"wallets", func() error { return s.stores.Wallets.Reset(ctx) }},
		{"tokens", func() error { return s.stores.Tokens.Reset(ctx) }},
		{"cache", func() error { return s.stores.Cache.Reset(ctx) }},
	}
	for _, res := range resets {
		if err := res.fn(); err != nil {
			s.logger.Error("reset failed", "collection", res.name, "error", err)
			writeError(w, http.StatusInternalServerError, "reset failed at "+res.name)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// maxWebhookBody caps the accepted webhook body size.
const maxWebhookBody = 4 << 20

// decodePayloads reads the webhook body as an array of payloads, accepting
// a single object as a one-element batch.
func decodePayloads(r *http.Request) ([]classifier.TransactionPayload, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, errors.New("unreadable payload body")
	}

	var batch []classifier.TransactionPayload
	if err := json.Unmarshal(body, &batch); err == nil {
		return batch, nil
	}

	var single classifier.TransactionPayload
	if err := json.Unmarshal(body, &single); err == nil && single.Signature != "" {
		return []classifier.TransactionPayload{single}, nil
	}
	return nil, errors.New("invalid payload body: expected a transaction object or array")
}

func queryOrDefault(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func queryLimit(r *http.Request, fallback, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
