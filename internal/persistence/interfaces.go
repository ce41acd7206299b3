// Package persistence declares the repository interfaces the rest of the
// module depends on, grounded on this package's original interface-over-
// implementation split (TradesRepo/RegimeRepo/PremoveRepo in the teacher
// repo) — rewritten here for the FX price/event/signal domain. Concrete
// PostgreSQL implementations live under persistence/postgres.
package persistence

import (
	"context"
	"time"

	"github.com/m37335/threegate/internal/domain"
)

// TimeRange is an inclusive [From, To] window for time-bounded queries.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// PriceRepo persists and retrieves OHLCV bars (spec §3.1).
type PriceRepo interface {
	// Upsert inserts or updates one bar, keyed by (symbol, timeframe, timestamp).
	Upsert(ctx context.Context, bar domain.Bar) error

	// UpsertBatch upserts many bars and returns how many were newly inserted
	// (spec §6.5's "new_records" count is exactly this).
	UpsertBatch(ctx context.Context, bars []domain.Bar) (int, error)

	// LatestTimestamp returns the most recent stored bar's timestamp, if any.
	LatestTimestamp(ctx context.Context, symbol string, timeframe domain.Timeframe) (time.Time, bool, error)

	// Recent returns the most recent limit bars, oldest-first, for indicator
	// computation (spec §4.1 minimum-history requirement).
	Recent(ctx context.Context, symbol string, timeframe domain.Timeframe, limit int) ([]domain.Bar, error)
}

// EventRepo persists the durable event log (spec §3.2) and hands out
// unprocessed events to the router.
type EventRepo interface {
	Insert(ctx context.Context, evt domain.Event) (int64, error)
	Unprocessed(ctx context.Context, eventType domain.EventType, limit int) ([]domain.Event, error)
	MarkProcessed(ctx context.Context, id int64, errMsg *string) error
}

// SignalRepo persists three-gate signals (spec §3.5).
type SignalRepo interface {
	Insert(ctx context.Context, symbol string, result domain.ThreeGateResult) (int64, error)
	Recent(ctx context.Context, symbol string, limit int) ([]domain.ThreeGateResult, error)
}

// QualityRepo persists collection run logs and per-bar quality metrics
// (SPEC_FULL.md supplementary data model).
type QualityRepo interface {
	LogCollection(ctx context.Context, log domain.DataCollectionLog) error
	RecordQuality(ctx context.Context, metric domain.DataQualityMetric) error
}

// Repository aggregates every persistence interface the daemon needs.
type Repository struct {
	Prices  PriceRepo
	Events  EventRepo
	Signals SignalRepo
	Quality QualityRepo
}

// HealthCheck reports the persistence layer's connectivity status. No type
// in this module implements RepositoryHealth, and the HTTP admin surface's
// /healthz uses its own DB ping checker instead.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
