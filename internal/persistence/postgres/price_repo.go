// Package postgres implements the persistence interfaces against PostgreSQL
// using sqlx and lib/pq, grounded on the teacher's
// internal/persistence/postgres/trades_repo.go (context-scoped timeouts,
// ON CONFLICT upserts).
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m37335/threegate/internal/domain"
	"github.com/m37335/threegate/internal/persistence"
)

type priceRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPriceRepo returns a PostgreSQL-backed persistence.PriceRepo.
func NewPriceRepo(db *sqlx.DB, timeout time.Duration) persistence.PriceRepo {
	return &priceRepo{db: db, timeout: timeout}
}

func (r *priceRepo) Upsert(ctx context.Context, bar domain.Bar) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		INSERT INTO price_data (symbol, timeframe, timestamp, open, high, low, close, volume, source, quality_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (symbol, timeframe, timestamp)
		DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			quality_score = EXCLUDED.quality_score,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		bar.Symbol, bar.Timeframe, bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close,
		bar.Volume, bar.Source, bar.QualityScore)
	if err != nil {
		return fmt.Errorf("upserting bar: %w", err)
	}
	return nil
}

// UpsertBatch upserts bars one at a time inside a single transaction and
// returns how many rows were newly inserted (as opposed to updated), using
// xmax = 0 to distinguish INSERT from the ON CONFLICT UPDATE path.
func (r *priceRepo) UpsertBatch(ctx context.Context, bars []domain.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(bars)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO price_data (symbol, timeframe, timestamp, open, high, low, close, volume, source, quality_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (symbol, timeframe, timestamp)
		DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			quality_score = EXCLUDED.quality_score,
			updated_at = NOW()
		RETURNING (xmax = 0) AS inserted`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	newRecords := 0
	for _, bar := range bars {
		var inserted bool
		if err := stmt.QueryRowxContext(ctx,
			bar.Symbol, bar.Timeframe, bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close,
			bar.Volume, bar.Source, bar.QualityScore).Scan(&inserted); err != nil {
			return 0, fmt.Errorf("upserting bar in batch: %w", err)
		}
		if inserted {
			newRecords++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch upsert: %w", err)
	}
	return newRecords, nil
}

func (r *priceRepo) LatestTimestamp(ctx context.Context, symbol string, timeframe domain.Timeframe) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `SELECT MAX(timestamp) FROM price_data WHERE symbol = $1 AND timeframe = $2`

	var ts sql.NullTime
	if err := r.db.QueryRowxContext(ctx, query, symbol, timeframe).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("querying latest timestamp: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time, true, nil
}

func (r *priceRepo) Recent(ctx context.Context, symbol string, timeframe domain.Timeframe, limit int) ([]domain.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT symbol, timeframe, timestamp, open, high, low, close, volume, source, quality_score, created_at, updated_at
		FROM price_data
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT $3`

	rows, err := r.db.QueryxContext(ctx, query, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var bar domain.Bar
		if err := rows.StructScan(&bar); err != nil {
			return nil, fmt.Errorf("scanning bar: %w", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bars: %w", err)
	}

	// Recent() is most-recent-first at the SQL level for LIMIT efficiency;
	// indicator computation needs chronological order.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}
