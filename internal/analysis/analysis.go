// Package analysis implements the three-gate analysis service: for each
// data-collection-completed event it loads enough history per timeframe,
// computes indicator snapshots, flattens them into a condition.Snapshot,
// and runs the three-gate engine, grounded on
// original_source/modules/llm_analysis/services/three_gate_analysis_service.py.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/m37335/threegate/internal/condition"
	"github.com/m37335/threegate/internal/domain"
	"github.com/m37335/threegate/internal/indicators"
	"github.com/m37335/threegate/internal/metricsx"
	"github.com/m37335/threegate/internal/persistence"
	"github.com/m37335/threegate/internal/threegate"
)

// historyLimit is how many bars are pulled per timeframe; it matches the
// original's get_multiple_price_data(limit=250) and the 250-bar minimum
// indicators.Compute itself requires for EMA_200 to be valid.
const historyLimit = 250

// analysisTimeframes is the original's fixed evaluation order, broadest
// context first.
var analysisTimeframes = []domain.Timeframe{domain.TF1d, domain.TF4h, domain.TF1h, domain.TF5m}

// Stats mirrors the original service's in-memory counters (spec §4.4).
type Stats struct {
	TotalEventsProcessed int64
	TotalSignalsGenerated int64
	SkippedNoNewData      int64
	IndicatorFailures     int64
}

// Service wires indicator computation and the three-gate engine to the
// durable event log.
type Service struct {
	engine  *threegate.Engine
	prices  persistence.PriceRepo
	signals persistence.SignalRepo
	events    persistence.EventRepo
	stats     Stats
	metrics   *metricsx.Registry
	snapshots SnapshotCache
}

// New constructs a Service.
func New(engine *threegate.Engine, prices persistence.PriceRepo, signals persistence.SignalRepo, events persistence.EventRepo) *Service {
	return &Service{engine: engine, prices: prices, signals: signals, events: events}
}

// SetMetrics wires a metrics registry for events-processed/signals-emitted
// observability (spec SPEC_FULL.md §4.10); nil is a safe no-op default.
func (s *Service) SetMetrics(reg *metricsx.Registry) {
	s.metrics = reg
}

// Stats returns a copy of the current counters.
func (s *Service) Stats() Stats {
	return s.stats
}

// ProcessDataCollectionEvent runs the three-gate pipeline for symbol when
// newDataCount > 0, matching the original's "skip if nothing new" guard
// (spec §4.6 step 1).
func (s *Service) ProcessDataCollectionEvent(ctx context.Context, symbol string, newDataCount int) (*domain.ThreeGateResult, error) {
	s.stats.TotalEventsProcessed++

	if newDataCount <= 0 {
		s.stats.SkippedNoNewData++
		s.recordEvent("skipped")
		log.Debug().Str("symbol", symbol).Msg("no new data, skipping three-gate analysis")
		return nil, nil
	}

	snap, err := s.buildSnapshot(ctx, symbol)
	if err != nil {
		s.stats.IndicatorFailures++
		s.recordEvent("error")
		return nil, fmt.Errorf("building indicator snapshot: %w", err)
	}

	result, err := s.engine.Evaluate(symbol, snap)
	if err != nil {
		s.recordEvent("error")
		return nil, fmt.Errorf("evaluating three-gate engine: %w", err)
	}
	if result == nil {
		s.recordEvent("no_signal")
		log.Info().Str("symbol", symbol).Msg("three-gate analysis: no signal")
		return nil, nil
	}

	if _, err := s.signals.Insert(ctx, symbol, *result); err != nil {
		s.recordEvent("error")
		return nil, fmt.Errorf("persisting signal: %w", err)
	}
	s.stats.TotalSignalsGenerated++
	s.recordEvent("signal")
	if s.metrics != nil {
		s.metrics.RecordSignal(string(result.SignalType))
	}
	log.Info().Str("symbol", symbol).Str("signal_type", string(result.SignalType)).
		Float64("confidence", result.OverallConfidence).Msg("three-gate signal generated")

	return result, nil
}

func (s *Service) recordEvent(result string) {
	if s.metrics != nil {
		s.metrics.RecordEvent(result)
	}
}

// buildSnapshot fetches historyLimit bars per timeframe, computes
// indicators, and flattens them under "{timeframe}_{indicator}" keys
// (spec §4.6 step 2). A timeframe with insufficient history is skipped
// rather than failing the whole snapshot, since the three-gate conditions
// that reference it will simply fail their own lookup.
func (s *Service) buildSnapshot(ctx context.Context, symbol string) (condition.Snapshot, error) {
	snap := condition.Snapshot{}

	for _, tf := range analysisTimeframes {
		bars, err := s.prices.Recent(ctx, symbol, tf, historyLimit)
		if err != nil {
			return nil, fmt.Errorf("fetching %s history: %w", tf, err)
		}

		priceBars := make([]indicators.PriceBar, len(bars))
		for i, b := range bars {
			priceBars[i] = indicators.PriceBar{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		}

		ind, ok := indicators.Compute(priceBars)
		if !ok {
			log.Debug().Str("symbol", symbol).Str("timeframe", string(tf)).Int("bars", len(bars)).
				Msg("insufficient history for indicator computation")
			continue
		}

		for name, series := range ind.Values {
			snap[string(tf)+"_"+name] = series
		}
	}

	if len(snap) == 0 {
		return nil, fmt.Errorf("no timeframe had enough history to compute indicators for %s", symbol)
	}

	if s.snapshots != nil {
		if err := s.snapshots.SetSnapshot(ctx, symbol, snap); err != nil {
			log.Debug().Err(err).Str("symbol", symbol).Msg("caching indicator snapshot failed")
		}
	}
	return snap, nil
}

// SnapshotCache caches the most recent indicator snapshot per symbol for
// cheap /status introspection (spec SPEC_FULL.md §4.13); *cache.Cache
// satisfies this. A cache write failure never fails analysis.
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, symbol string, snap condition.Snapshot) error
}

// SetSnapshotCache wires an optional snapshot cache; nil is a safe no-op
// default.
func (s *Service) SetSnapshotCache(c SnapshotCache) {
	s.snapshots = c
}

// ProcessUnprocessedEvents drains up to limit unprocessed
// data_collection_completed events, matching the router's batch size
// (spec §4.7); failures mark the event processed with an error rather than
// retrying automatically.
func (s *Service) ProcessUnprocessedEvents(ctx context.Context, limit int) error {
	events, err := s.events.Unprocessed(ctx, domain.EventDataCollectionCompleted, limit)
	if err != nil {
		return fmt.Errorf("fetching unprocessed events: %w", err)
	}

	for _, evt := range events {
		var payload domain.DataCollectionPayload
		if err := json.Unmarshal(evt.EventData, &payload); err != nil {
			msg := err.Error()
			_ = s.events.MarkProcessed(ctx, evt.ID, &msg)
			continue
		}

		_, procErr := s.ProcessDataCollectionEvent(ctx, payload.Symbol, payload.TotalNewRecords)
		var errMsg *string
		if procErr != nil {
			m := procErr.Error()
			errMsg = &m
		}
		if err := s.events.MarkProcessed(ctx, evt.ID, errMsg); err != nil {
			log.Error().Err(err).Int64("event_id", evt.ID).Msg("marking event processed failed")
		}
	}
	return nil
}
