package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m37335/threegate/internal/domain"
	"github.com/m37335/threegate/internal/persistence"
)

type qualityRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewQualityRepo returns a PostgreSQL-backed persistence.QualityRepo.
func NewQualityRepo(db *sqlx.DB, timeout time.Duration) persistence.QualityRepo {
	return &qualityRepo{db: db, timeout: timeout}
}

func (r *qualityRepo) LogCollection(ctx context.Context, log domain.DataCollectionLog) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		INSERT INTO data_collection_log (symbol, timeframe, records_saved, success, error_message, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	_, err := r.db.ExecContext(ctx, query,
		log.Symbol, log.Timeframe, log.RecordsSaved, log.Success, log.ErrorMessage, log.DurationMS)
	if err != nil {
		return fmt.Errorf("logging collection run: %w", err)
	}
	return nil
}

func (r *qualityRepo) RecordQuality(ctx context.Context, metric domain.DataQualityMetric) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		INSERT INTO data_quality_metrics (symbol, timeframe, timestamp, quality_score, well_formed, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (symbol, timeframe, timestamp)
		DO UPDATE SET quality_score = EXCLUDED.quality_score, well_formed = EXCLUDED.well_formed`

	_, err := r.db.ExecContext(ctx, query,
		metric.Symbol, metric.Timeframe, metric.Timestamp, metric.QualityScore, metric.WellFormed)
	if err != nil {
		return fmt.Errorf("recording quality metric: %w", err)
	}
	return nil
}
