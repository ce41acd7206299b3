// Package threegate implements the three-stage deterministic filter (spec
// §4.3): Gate 1 environment recognition, Gate 2 scenario selection, Gate 3
// trigger, followed by signal assembly and entry/stop-loss/take-profit
// computation. Grounded on the structure of the original Python
// ThreeGateEngine, rewritten with Go's explicit error returns and a
// snapshot-based condition evaluator instead of pandas lookups.
package threegate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m37335/threegate/internal/condition"
	"github.com/m37335/threegate/internal/domain"
	"github.com/m37335/threegate/internal/patterns"
)

// Risk-management constants (spec §4.3.6), fixed and not configurable in
// the core.
const (
	minRiskPips      = 3.0
	atrMultiplierMin = 0.8
	atrMultiplierMax = 2.0
	bufferPips       = 2.0
	pip              = 1e-4
	defaultMinConfidence = 0.6
	defaultATR           = 0.01
)

var takeProfitRatios = [3]float64{2.0, 3.0, 4.0}

// defaultEnvironmentMapping is the hard-coded Gate 2 scenario fallback used
// when a catalog has no environment_mapping section at all (spec §4.3.3,
// and the Open Question in spec §9: "catalog wins; only if the catalog has
// no mapping section at all does the default apply").
var defaultEnvironmentMapping = map[string][]string{
	"trending_market": {"pullback_setup", "breakout_setup"},
	"trend_reversal":  {"first_pullback"},
	"ranging_market":  {"range_boundary"},
}

// gate2EnvironmentKeys maps the short environment keys a scenario's
// environment_conditions map may use to the full Gate 1 pattern names they
// correspond to (spec §4.3.3).
var gate2EnvironmentKeys = map[string]string{
	"trending_bull":  "trending_market_bullish",
	"trending_bear":  "trending_market_bearish",
	"trend_reversal": "trend_reversal",
	"ranging_market": "ranging_market",
}

// Loader is the subset of patterns.Loader the engine needs, so tests can
// substitute an in-memory catalog provider.
type Loader interface {
	LoadGatePatterns(gate int) (*patterns.Catalog, error)
}

// SignalTimeStore optionally persists the rate limiter's per-symbol
// last-signal timestamp across process restarts (spec SPEC_FULL.md §4.13);
// *cache.Cache satisfies this. A store error or cache miss falls back to
// the engine's in-memory map, so an unavailable store never changes
// whether a signal is emitted, only whether the window survives a
// restart.
type SignalTimeStore interface {
	GetLastSignalTime(ctx context.Context, symbol string) (time.Time, bool, error)
	SetLastSignalTime(ctx context.Context, symbol string, t time.Time) error
}

// storeTimeout bounds how long a SignalTimeStore call may block Evaluate.
const storeTimeout = 500 * time.Millisecond

// MetricsRecorder optionally observes engine evaluations (spec
// SPEC_FULL.md §4.10); *metricsx.Registry satisfies this.
type MetricsRecorder interface {
	RecordEval(seconds float64)
	RecordGatePass(gate string)
}

// Engine runs the three-gate evaluation for one symbol universe.
type Engine struct {
	loader Loader

	minSignalInterval time.Duration
	disableRateLimit  bool
	store             SignalTimeStore
	metrics           MetricsRecorder

	mu             sync.Mutex
	lastSignalTime map[string]time.Time

	stats Stats
}

// Stats mirrors spec §4.4's in-memory counters.
type Stats struct {
	TotalEvaluations   int
	Gate1PassCount     int
	Gate2PassCount     int
	Gate3PassCount     int
	SignalsEmitted     int
	CumulativeEvalTime time.Duration
	StartTime          time.Time
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithMinSignalInterval overrides the default 15-minute rate limit.
func WithMinSignalInterval(d time.Duration) Option {
	return func(e *Engine) { e.minSignalInterval = d }
}

// WithRateLimitDisabled disables the minimum-interval rate limit, for test
// runs (spec §4.3.7).
func WithRateLimitDisabled() Option {
	return func(e *Engine) { e.disableRateLimit = true }
}

// WithSignalTimeStore makes the rate limiter consult store before falling
// back to the in-memory map (spec SPEC_FULL.md §4.13).
func WithSignalTimeStore(store SignalTimeStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithMetrics wires a MetricsRecorder to observe evaluation duration and
// per-gate pass counts.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs an Engine backed by loader.
func NewEngine(loader Loader, opts ...Option) *Engine {
	e := &Engine{
		loader:            loader,
		minSignalInterval: 15 * time.Minute,
		lastSignalTime:    map[string]time.Time{},
		stats:             Stats{StartTime: time.Now()},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns a snapshot of the engine's counters (spec §4.4).
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Evaluate runs Gates 1->2->3 for symbol against snap and returns a
// ThreeGateResult if a tradeable signal is produced, or nil if the pipeline
// stopped early, produced a NEUTRAL result, or was rate-limited.
func (e *Engine) Evaluate(symbol string, snap condition.Snapshot) (*domain.ThreeGateResult, error) {
	start := time.Now()
	e.mu.Lock()
	e.stats.TotalEvaluations++
	e.mu.Unlock()
	defer func() {
		elapsed := time.Since(start)
		e.mu.Lock()
		e.stats.CumulativeEvalTime += elapsed
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.RecordEval(elapsed.Seconds())
		}
	}()

	gate1Catalog, err := e.loader.LoadGatePatterns(1)
	if err != nil {
		return nil, err
	}
	gate1 := e.evaluateGate1(snap, gate1Catalog)
	if !gate1.Valid {
		return nil, nil
	}
	e.mu.Lock()
	e.stats.Gate1PassCount++
	e.mu.Unlock()
	e.recordGatePass("gate1")

	gate2Catalog, err := e.loader.LoadGatePatterns(2)
	if err != nil {
		return nil, err
	}
	gate2 := e.evaluateGate2(snap, gate2Catalog, gate1)
	if !gate2.Valid {
		return nil, nil
	}
	e.mu.Lock()
	e.stats.Gate2PassCount++
	e.mu.Unlock()
	e.recordGatePass("gate2")

	gate3Catalog, err := e.loader.LoadGatePatterns(3)
	if err != nil {
		return nil, err
	}
	gate3 := e.evaluateGate3(snap, gate3Catalog, gate1)
	if !gate3.Valid {
		return nil, nil
	}
	e.mu.Lock()
	e.stats.Gate3PassCount++
	e.mu.Unlock()
	e.recordGatePass("gate3")

	result := e.assembleSignal(symbol, snap, gate1, gate2, gate3)
	if !result.Tradeable() {
		return nil, nil
	}

	if !e.allowSignal(symbol, result.Timestamp) {
		return nil, nil
	}

	e.mu.Lock()
	e.lastSignalTime[symbol] = result.Timestamp
	e.stats.SignalsEmitted++
	e.mu.Unlock()

	if e.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		_ = e.store.SetLastSignalTime(ctx, symbol, result.Timestamp)
		cancel()
	}

	return &result, nil
}

// allowSignal enforces the minimum interval between emitted signals per
// symbol (spec §4.3.7, property P5). The optional store is consulted first
// so the window survives a process restart; any store miss or error falls
// back to the in-memory map, never to "always allow".
func (e *Engine) allowSignal(symbol string, now time.Time) bool {
	if e.disableRateLimit {
		return true
	}
	last, ok := e.lastSeen(symbol)
	if !ok {
		return true
	}
	return now.Sub(last) >= e.minSignalInterval
}

func (e *Engine) recordGatePass(gate string) {
	if e.metrics != nil {
		e.metrics.RecordGatePass(gate)
	}
}

func (e *Engine) lastSeen(symbol string) (time.Time, bool) {
	if e.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		t, ok, err := e.store.GetLastSignalTime(ctx, symbol)
		cancel()
		if err == nil && ok {
			return t, true
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastSignalTime[symbol]
	return last, ok
}

func newGateResult(pattern string) domain.GateResult {
	return domain.GateResult{
		Pattern:          pattern,
		PassedConditions: []string{},
		FailedConditions: []string{},
		AdditionalData:   map[string]interface{}{},
		Timestamp:        time.Now().UTC(),
	}
}

func normalizeEnvironment(pattern string) string {
	pattern = strings.TrimSuffix(pattern, "_bullish")
	pattern = strings.TrimSuffix(pattern, "_bearish")
	return pattern
}
