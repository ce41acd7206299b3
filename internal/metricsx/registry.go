// Package metricsx exposes Prometheus metrics for the collector, analysis
// service, cache, and circuit breakers, grounded on
// internal/interfaces/http/metrics.go's MetricsRegistry (same naming
// convention — CounterVec/HistogramVec/GaugeVec per concern, wrapped
// increment/observe helper methods, promhttp.Handler for the /metrics
// surface), adapted from CryptoRun's pipeline-step/regime metrics to this
// module's collector/analysis/cache domain.
package metricsx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Prometheus metric this module exports.
type Registry struct {
	CollectionDuration *prometheus.HistogramVec
	BarsCollected      *prometheus.CounterVec
	CollectionErrors   *prometheus.CounterVec

	EventsProcessed *prometheus.CounterVec
	EvalDuration    prometheus.Histogram
	GatePasses      *prometheus.CounterVec
	SignalsEmitted  *prometheus.CounterVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	BreakerState *prometheus.GaugeVec
}

// NewRegistry constructs a Registry and registers every metric with reg. A
// nil reg registers with prometheus.DefaultRegisterer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Registry{
		CollectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "threegate_collection_duration_seconds",
				Help:    "Duration of one timeframe's collection cycle.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"timeframe", "result"},
		),
		BarsCollected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threegate_bars_collected_total",
				Help: "Total number of bars persisted by the collector.",
			},
			[]string{"timeframe"},
		),
		CollectionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threegate_collection_errors_total",
				Help: "Total collection failures by timeframe.",
			},
			[]string{"timeframe"},
		),
		EventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threegate_events_processed_total",
				Help: "Total data_collection_completed events processed by the analysis service.",
			},
			[]string{"result"},
		),
		EvalDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "threegate_engine_eval_duration_seconds",
				Help:    "Duration of one three-gate Engine.Evaluate call.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		GatePasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threegate_gate_passes_total",
				Help: "Total evaluations that passed each gate.",
			},
			[]string{"gate"},
		),
		SignalsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threegate_signals_emitted_total",
				Help: "Total tradeable signals emitted by signal type.",
			},
			[]string{"signal_type"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threegate_cache_hits_total",
				Help: "Total cache hits by cache key class.",
			},
			[]string{"cache"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threegate_cache_misses_total",
				Help: "Total cache misses by cache key class.",
			},
			[]string{"cache"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "threegate_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) by dependency name.",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		r.CollectionDuration, r.BarsCollected, r.CollectionErrors,
		r.EventsProcessed, r.EvalDuration, r.GatePasses, r.SignalsEmitted,
		r.CacheHits, r.CacheMisses, r.BreakerState,
	)

	return r
}

// Handler exposes the registered metrics for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCollection observes one timeframe's collection cycle.
func (r *Registry) RecordCollection(timeframe, result string, seconds float64, barsSaved int) {
	r.CollectionDuration.WithLabelValues(timeframe, result).Observe(seconds)
	if result == "error" {
		r.CollectionErrors.WithLabelValues(timeframe).Inc()
		return
	}
	r.BarsCollected.WithLabelValues(timeframe).Add(float64(barsSaved))
}

// RecordEvent records the outcome of processing one data-collection event.
func (r *Registry) RecordEvent(result string) {
	r.EventsProcessed.WithLabelValues(result).Inc()
}

// RecordEval observes one engine evaluation's wall-clock duration.
func (r *Registry) RecordEval(seconds float64) {
	r.EvalDuration.Observe(seconds)
}

// RecordGatePass increments the pass counter for gate ("gate1", "gate2", "gate3").
func (r *Registry) RecordGatePass(gate string) {
	r.GatePasses.WithLabelValues(gate).Inc()
}

// RecordSignal increments the emitted-signal counter for signalType.
func (r *Registry) RecordSignal(signalType string) {
	r.SignalsEmitted.WithLabelValues(signalType).Inc()
}

// RecordCacheHit increments the hit counter for cache.
func (r *Registry) RecordCacheHit(cache string) {
	r.CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss increments the miss counter for cache.
func (r *Registry) RecordCacheMiss(cache string) {
	r.CacheMisses.WithLabelValues(cache).Inc()
}

// breakerStateValue maps gobreaker's State.String() output to the gauge
// encoding documented on BreakerState.
func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// SetBreakerState records the current state of the named circuit breaker.
func (r *Registry) SetBreakerState(name, state string) {
	r.BreakerState.WithLabelValues(name).Set(breakerStateValue(state))
}
