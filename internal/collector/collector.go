// Package collector implements the continuous data-collection daemon,
// grounded on original_source/modules/data_collection/core/
// continuous_collector.py's ContinuousDataCollector: a fixed per-timeframe
// schedule, fetch-since-last-stored-timestamp, a single completion event
// when any timeframe saved new records, and a cancellable sleep loop.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/m37335/threegate/internal/breaker"
	"github.com/m37335/threegate/internal/domain"
	"github.com/m37335/threegate/internal/marketdata"
	"github.com/m37335/threegate/internal/metricsx"
	"github.com/m37335/threegate/internal/persistence"
)

// interTimeframeSleep matches the original's asyncio.sleep(1.0) between
// timeframes, a rate-limit protection against the upstream API.
const interTimeframeSleep = 1 * time.Second

// Collector polls marketdata.Provider on a fixed schedule and upserts the
// results into persistence.PriceRepo.
type Collector struct {
	symbol      string
	provider    marketdata.Provider
	prices      persistence.PriceRepo
	events      persistence.EventRepo
	quality     persistence.QualityRepo
	breaker     *breaker.Breaker
	now         func() time.Time
	pacingSleep time.Duration
	metrics     *metricsx.Registry
}

// SetMetrics wires a metrics registry for collection-duration/bars-saved
// observability (spec SPEC_FULL.md §4.10); nil is a safe no-op default.
func (c *Collector) SetMetrics(reg *metricsx.Registry) {
	c.metrics = reg
}

// New constructs a Collector for symbol, backed by provider and the given
// repositories. The circuit breaker wraps every provider.FetchBars call.
func New(symbol string, provider marketdata.Provider, prices persistence.PriceRepo, events persistence.EventRepo, quality persistence.QualityRepo) *Collector {
	return &Collector{
		symbol:      symbol,
		provider:    provider,
		prices:      prices,
		events:      events,
		quality:     quality,
		breaker:     breaker.New("marketdata." + provider.Name()),
		now:         time.Now,
		pacingSleep: interTimeframeSleep,
	}
}

// CollectAll runs one pass over every timeframe in domain.Timeframes,
// returning how many new records were saved per timeframe (spec §4.6).
// It sleeps interTimeframeSleep between timeframes as rate-limit
// protection, matching the original collector's cadence.
func (c *Collector) CollectAll(ctx context.Context) (map[domain.Timeframe]int, error) {
	results := make(map[domain.Timeframe]int, len(domain.Timeframes))

	for i, tf := range domain.Timeframes {
		saved, err := c.collectTimeframe(ctx, tf)
		if err != nil {
			log.Error().Err(err).Str("symbol", c.symbol).Str("timeframe", string(tf)).Msg("timeframe collection failed")
			results[tf] = 0
		} else {
			results[tf] = saved
		}

		if i < len(domain.Timeframes)-1 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(c.pacingSleep):
			}
		}
	}

	total := 0
	for _, n := range results {
		total += n
	}
	if total > 0 {
		log.Info().Str("symbol", c.symbol).Int("total_new_records", total).Msg("data collection completed")
		if err := c.publishCompletionEvent(ctx, results, total); err != nil {
			log.Error().Err(err).Msg("publishing data collection event failed")
		}
	} else {
		log.Debug().Str("symbol", c.symbol).Msg("no new data this cycle")
	}

	return results, nil
}

// BreakerState reports the provider circuit breaker's current state
// ("closed", "half-open", or "open"), exposed for the ops health surface
// (spec SPEC_FULL.md §4.12/§4.14).
func (c *Collector) BreakerState() string {
	return c.breaker.State()
}

func (c *Collector) collectTimeframe(ctx context.Context, tf domain.Timeframe) (int, error) {
	start := c.now()

	latest, found, err := c.prices.LatestTimestamp(ctx, c.symbol, tf)
	if err != nil {
		return 0, fmt.Errorf("querying latest timestamp: %w", err)
	}

	from := latest.Add(time.Minute)
	if !found {
		// No history yet: seed with a generous lookback so indicator
		// computation has enough bars on first run.
		from = c.now().Add(-90 * 24 * time.Hour)
	}
	to := c.now()

	raw, err := c.breaker.Execute(func() (any, error) {
		return c.provider.FetchBars(ctx, c.symbol, tf, from, to)
	})
	if c.metrics != nil {
		c.metrics.SetBreakerState("marketdata."+c.provider.Name(), c.breaker.State())
	}
	if err != nil {
		c.logCollection(ctx, tf, 0, false, err.Error(), start)
		c.recordMetrics(tf, "error", start, 0)
		return 0, fmt.Errorf("fetching bars: %w", err)
	}
	bars, _ := raw.([]domain.Bar)
	if len(bars) == 0 {
		c.logCollection(ctx, tf, 0, true, "", start)
		c.recordMetrics(tf, "ok", start, 0)
		return 0, nil
	}

	for _, bar := range bars {
		metric := domain.DataQualityMetric{
			Symbol: bar.Symbol, Timeframe: string(bar.Timeframe), Timestamp: bar.Timestamp,
			QualityScore: bar.QualityScore, WellFormed: bar.WellFormed(),
		}
		if err := c.quality.RecordQuality(ctx, metric); err != nil {
			log.Warn().Err(err).Msg("recording quality metric failed")
		}
	}

	saved, err := c.prices.UpsertBatch(ctx, bars)
	if err != nil {
		c.logCollection(ctx, tf, 0, false, err.Error(), start)
		c.recordMetrics(tf, "error", start, 0)
		return 0, fmt.Errorf("saving bars: %w", err)
	}

	c.logCollection(ctx, tf, saved, true, "", start)
	c.recordMetrics(tf, "ok", start, saved)
	if saved > 0 {
		log.Info().Str("symbol", c.symbol).Str("timeframe", string(tf)).Int("new_records", saved).Msg("saved new bars")
	}
	return saved, nil
}

func (c *Collector) recordMetrics(tf domain.Timeframe, result string, start time.Time, saved int) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordCollection(string(tf), result, c.now().Sub(start).Seconds(), saved)
}

func (c *Collector) logCollection(ctx context.Context, tf domain.Timeframe, saved int, success bool, errMsg string, start time.Time) {
	entry := domain.DataCollectionLog{
		Symbol: c.symbol, Timeframe: string(tf), RecordsSaved: saved, Success: success,
		DurationMS: c.now().Sub(start).Milliseconds(),
	}
	if errMsg != "" {
		entry.ErrorMessage = &errMsg
	}
	if err := c.quality.LogCollection(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("logging collection run failed")
	}
}

func (c *Collector) publishCompletionEvent(ctx context.Context, results map[domain.Timeframe]int, total int) error {
	payload := domain.DataCollectionPayload{
		Symbol:          c.symbol,
		Timeframes:      make(map[string]domain.TimeframeCollection),
		TotalNewRecords: total,
		Timestamp:       c.now().UTC(),
		DaemonType:      "collector",
	}
	for tf, n := range results {
		if n > 0 {
			payload.Timeframes[string(tf)] = domain.TimeframeCollection{
				NewRecords:      n,
				LatestTimestamp: c.now().UTC(),
			}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event payload: %w", err)
	}

	_, err = c.events.Insert(ctx, domain.Event{
		EventType: domain.EventDataCollectionCompleted,
		Symbol:    c.symbol,
		EventData: data,
	})
	return err
}

// Run loops CollectAll every interval until ctx is cancelled, matching the
// original's run_continuous_collection sleep-then-repeat shape.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	log.Info().Str("symbol", c.symbol).Dur("interval", interval).Msg("continuous collection starting")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := c.CollectAll(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("initial collection cycle failed")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("continuous collection stopped")
			return
		case <-ticker.C:
			if _, err := c.CollectAll(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("collection cycle failed")
			}
		}
	}
}
