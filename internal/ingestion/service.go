// Package ingestion runs transaction payloads through classification and
// accounting, with rate limiting and sampling at the edge.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"pumploss/internal/accounting"
	"pumploss/internal/classifier"
	"pumploss/internal/domain"
	"pumploss/internal/observability"
	"pumploss/internal/storage"
)

// BatchResult summarizes one processed payload batch.
type BatchResult struct {
	Received    int  `json:"received"`
	Applied     int  `json:"applied"`
	Duplicates  int  `json:"duplicates"`
	Skipped     int  `json:"skipped"`
	Errors      int  `json:"errors"`
	RateLimited bool `json:"rateLimited"`
}

// Service is the classify-and-apply pipeline.
type Service struct {
	classifier *classifier.Classifier
	engine     *accounting.Engine
	limiter    *WindowCounter
	sampler    *Sampler
	batchCap   int
	sink       storage.AnalyticsSink // optional
	logger     *slog.Logger
}

// NewService creates an ingestion Service. limiter and sampler are injected
// so callers control the edge policies; either may be nil to disable. sink
// is an optional analytics mirror.
func NewService(c *classifier.Classifier, engine *accounting.Engine, limiter *WindowCounter, sampler *Sampler, batchCap int, sink storage.AnalyticsSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		classifier: c,
		engine:     engine,
		limiter:    limiter,
		sampler:    sampler,
		batchCap:   batchCap,
		sink:       sink,
		logger:     logger,
	}
}

// ProcessBatch classifies each payload and applies the resulting trades.
// Non-trades, sampled-out payloads and over-cap payloads are counted as
// skipped. A failed apply is counted and logged but does not stop the rest
// of the batch. A rate-limited batch is dropped whole and reported, not
// errored, so upstream transports do not retry-storm.
func (s *Service) ProcessBatch(ctx context.Context, payloads []classifier.TransactionPayload) (*BatchResult, error) {
	res := &BatchResult{Received: len(payloads)}

	if s.limiter != nil && !s.limiter.Allow() {
		res.RateLimited = true
		observability.RecordRateLimited()
		s.logger.Warn("payload batch rate limited", "size", len(payloads))
		return res, nil
	}

	var mirror []*domain.RealizedPnlEvent
	for i := range payloads {
		observability.RecordPayloadReceived()

		trade, ok := s.classifier.Classify(&payloads[i])
		if !ok {
			res.Skipped++
			observability.RecordNonTrade()
			continue
		}

		if s.sampler != nil && !s.sampler.Keep() {
			res.Skipped++
			observability.RecordSampledOut()
			continue
		}

		if s.batchCap > 0 && res.Applied+res.Duplicates >= s.batchCap {
			res.Skipped++
			continue
		}

		outcome, err := s.engine.Apply(ctx, trade)
		if err != nil {
			res.Errors++
			observability.RecordApplyError()
			s.logger.Error("apply trade failed", "signature", trade.Signature, "error", err)
			continue
		}

		observability.RecordTradeApplied(string(trade.Direction), outcome.Duplicate)
		// A duplicate can still carry a backfilled PNL event; mirror it too.
		if outcome.PnlEvent != nil {
			mirror = append(mirror, outcome.PnlEvent)
		}
		if outcome.Duplicate {
			res.Duplicates++
			continue
		}
		res.Applied++
	}

	s.mirrorEvents(ctx, mirror)
	return res, nil
}

// ApplyDirect is the backfill/manual ingress: an already-classified trade
// bypasses the classifier and edge policies and goes straight to accounting.
func (s *Service) ApplyDirect(ctx context.Context, trade *domain.Trade) (*accounting.Result, error) {
	outcome, err := s.engine.Apply(ctx, trade)
	if err != nil {
		return nil, fmt.Errorf("apply direct trade: %w", err)
	}
	observability.RecordTradeApplied(string(trade.Direction), outcome.Duplicate)
	if outcome.PnlEvent != nil {
		s.mirrorEvents(ctx, []*domain.RealizedPnlEvent{outcome.PnlEvent})
	}
	return outcome, nil
}

// mirrorEvents forwards PNL events to the analytics sink. Best-effort: the
// accounting outcome is already durable, so sink failures only log.
func (s *Service) mirrorEvents(ctx context.Context, events []*domain.RealizedPnlEvent) {
	if s.sink == nil || len(events) == 0 {
		return
	}
	err := s.sink.InsertEvents(ctx, events)
	observability.RecordAnalyticsMirror(len(events), err)
	if err != nil {
		s.logger.Warn("analytics mirror failed", "events", len(events), "error", err)
	}
}
