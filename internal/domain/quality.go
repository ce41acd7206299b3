package domain

import "time"

// DataCollectionLog records one collector run's outcome per timeframe, for
// operational visibility beyond what the events table captures (SPEC_FULL.md
// supplementary data model, grounded on the original collector's per-run
// logging statements).
type DataCollectionLog struct {
	ID           int64     `db:"id" json:"id"`
	Symbol       string    `db:"symbol" json:"symbol"`
	Timeframe    string    `db:"timeframe" json:"timeframe"`
	RecordsSaved int       `db:"records_saved" json:"records_saved"`
	Success      bool      `db:"success" json:"success"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	DurationMS   int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DataQualityMetric captures a single bar's WellFormed verdict and the
// computed QualityScore, persisted so degrading data quality can be
// monitored over time rather than only checked in-flight.
type DataQualityMetric struct {
	ID           int64     `db:"id" json:"id"`
	Symbol       string    `db:"symbol" json:"symbol"`
	Timeframe    string    `db:"timeframe" json:"timeframe"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
	QualityScore float64   `db:"quality_score" json:"quality_score"`
	WellFormed   bool      `db:"well_formed" json:"well_formed"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
