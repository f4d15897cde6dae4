// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	PayloadsReceived   prometheus.Counter
	NonTradePayloads   prometheus.Counter
	TradesApplied      *prometheus.CounterVec
	DuplicateTrades    prometheus.Counter
	DegradedPnlEvents  prometheus.Counter
	ApplyErrors        prometheus.Counter
	RateLimitedBatches prometheus.Counter
	SampledOutPayloads prometheus.Counter

	// Leaderboard metrics
	LeaderboardRefreshes *prometheus.CounterVec
	LeaderboardCacheHits *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Analytics mirror metrics
	AnalyticsEventsMirrored prometheus.Counter
	AnalyticsMirrorErrors   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pumploss"
	}

	return &Metrics{
		PayloadsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "payloads_received_total",
			Help:      "Total number of transaction payloads received",
		}),
		NonTradePayloads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "non_trade_payloads_total",
			Help:      "Total number of payloads classified as not a trade",
		}),
		TradesApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_applied_total",
			Help:      "Total number of trades applied to the ledger by direction",
		}, []string{"direction"}),
		DuplicateTrades: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicate_trades_total",
			Help:      "Total number of redelivered trades deduplicated by signature",
		}),
		DegradedPnlEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounting",
			Name:      "degraded_pnl_events_total",
			Help:      "Total number of break-even PNL events recorded without cost basis",
		}),
		ApplyErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "apply_errors_total",
			Help:      "Total number of trades that failed to apply",
		}),
		RateLimitedBatches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rate_limited_batches_total",
			Help:      "Total number of payload batches dropped by the rate limiter",
		}),
		SampledOutPayloads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "sampled_out_payloads_total",
			Help:      "Total number of classified payloads skipped by the sampler",
		}),
		LeaderboardRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "refreshes_total",
			Help:      "Total number of leaderboard recomputations by period",
		}, []string{"period"}),
		LeaderboardCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "cache_lookups_total",
			Help:      "Total number of leaderboard cache lookups by outcome",
		}, []string{"outcome"}),
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "path"}),
		AnalyticsEventsMirrored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "events_mirrored_total",
			Help:      "Total number of PNL events mirrored to the analytics sink",
		}),
		AnalyticsMirrorErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "mirror_errors_total",
			Help:      "Total number of failed analytics mirror batches",
		}),
	}
}

// DefaultMetrics is the singleton used by the Record helpers.
var DefaultMetrics = NewMetrics("pumploss")

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPayloadReceived increments the received-payload counter.
func RecordPayloadReceived() {
	DefaultMetrics.PayloadsReceived.Inc()
}

// RecordNonTrade increments the not-a-trade counter.
func RecordNonTrade() {
	DefaultMetrics.NonTradePayloads.Inc()
}

// RecordTradeApplied records an applied or deduplicated trade.
func RecordTradeApplied(direction string, duplicate bool) {
	if duplicate {
		DefaultMetrics.DuplicateTrades.Inc()
		return
	}
	DefaultMetrics.TradesApplied.WithLabelValues(direction).Inc()
}

// RecordDegradedPnl increments the degraded-PNL counter.
func RecordDegradedPnl() {
	DefaultMetrics.DegradedPnlEvents.Inc()
}

// RecordApplyError increments the apply-error counter.
func RecordApplyError() {
	DefaultMetrics.ApplyErrors.Inc()
}

// RecordRateLimited increments the rate-limited batch counter.
func RecordRateLimited() {
	DefaultMetrics.RateLimitedBatches.Inc()
}

// RecordSampledOut increments the sampler-skip counter.
func RecordSampledOut() {
	DefaultMetrics.SampledOutPayloads.Inc()
}

// RecordLeaderboardRefresh records a leaderboard recomputation.
func RecordLeaderboardRefresh(period string) {
	DefaultMetrics.LeaderboardRefreshes.WithLabelValues(period).Inc()
}

// RecordLeaderboardCacheLookup records a cache hit or miss.
func RecordLeaderboardCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	DefaultMetrics.LeaderboardCacheHits.WithLabelValues(outcome).Inc()
}

// RecordAnalyticsMirror records an analytics mirror batch outcome.
func RecordAnalyticsMirror(events int, err error) {
	if err != nil {
		DefaultMetrics.AnalyticsMirrorErrors.Inc()
		return
	}
	DefaultMetrics.AnalyticsEventsMirrored.Add(float64(events))
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		DefaultMetrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		DefaultMetrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
