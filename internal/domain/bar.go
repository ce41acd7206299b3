// Package domain holds the core value types shared across the ingest and
// analysis pipelines: bars, events, indicator snapshots, and gate results.
package domain

import "time"

// Timeframe is one of the five supported candle durations.
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Timeframes lists the collector's fixed schedule, shortest first.
var Timeframes = []Timeframe{TF5m, TF15m, TF1h, TF4h, TF1d}

// Bar is one OHLCV candle for a (symbol, timeframe, timestamp) key.
type Bar struct {
	Symbol         string    `db:"symbol" json:"symbol"`
	Timeframe      Timeframe `db:"timeframe" json:"timeframe"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
	Open           float64   `db:"open" json:"open"`
	High           float64   `db:"high" json:"high"`
	Low            float64   `db:"low" json:"low"`
	Close          float64   `db:"close" json:"close"`
	Volume         int64     `db:"volume" json:"volume"`
	Source         string    `db:"source" json:"source"`
	QualityScore   float64   `db:"quality_score" json:"quality_score"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// WellFormed reports whether the bar satisfies the low <= open,close <= high
// shape invariant (spec P1). It does not mutate QualityScore; callers attenuate
// it separately so the bar is still stored per spec §7 DataQuality handling.
func (b Bar) WellFormed() bool {
	if b.Low > b.Open || b.Open > b.High {
		return false
	}
	if b.Low > b.Close || b.Close > b.High {
		return false
	}
	return b.Volume >= 0
}
