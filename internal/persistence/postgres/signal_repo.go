package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m37335/threegate/internal/domain"
	"github.com/m37335/threegate/internal/persistence"
)

type signalRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSignalRepo returns a PostgreSQL-backed persistence.SignalRepo. Gate
// results are stored as JSONB rather than flattened into columns since they
// are written once and read back whole, never queried by sub-field.
func NewSignalRepo(db *sqlx.DB, timeout time.Duration) persistence.SignalRepo {
	return &signalRepo{db: db, timeout: timeout}
}

func (r *signalRepo) Insert(ctx context.Context, symbol string, result domain.ThreeGateResult) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	gate1, err := json.Marshal(result.Gate1)
	if err != nil {
		return 0, fmt.Errorf("marshaling gate1: %w", err)
	}
	gate2, err := json.Marshal(result.Gate2)
	if err != nil {
		return 0, fmt.Errorf("marshaling gate2: %w", err)
	}
	gate3, err := json.Marshal(result.Gate3)
	if err != nil {
		return 0, fmt.Errorf("marshaling gate3: %w", err)
	}
	takeProfit, err := json.Marshal(result.TakeProfit)
	if err != nil {
		return 0, fmt.Errorf("marshaling take_profit: %w", err)
	}

	const query = `
		INSERT INTO three_gate_signals (
			symbol, signal_type, overall_confidence, entry_price, stop_loss, take_profit,
			gate1, gate2, gate3, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var id int64
	row := r.db.QueryRowxContext(ctx, query,
		symbol, result.SignalType, result.OverallConfidence, result.EntryPrice, result.StopLoss,
		takeProfit, gate1, gate2, gate3, result.Timestamp)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting signal: %w", err)
	}
	return id, nil
}

func (r *signalRepo) Recent(ctx context.Context, symbol string, limit int) ([]domain.ThreeGateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT signal_type, overall_confidence, entry_price, stop_loss, take_profit, gate1, gate2, gate3, created_at
		FROM three_gate_signals
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent signals: %w", err)
	}
	defer rows.Close()

	var results []domain.ThreeGateResult
	for rows.Next() {
		var (
			signalType string
			gate1Raw   []byte
			gate2Raw   []byte
			gate3Raw   []byte
			tpRaw      []byte
			result     domain.ThreeGateResult
		)
		if err := rows.Scan(&signalType, &result.OverallConfidence, &result.EntryPrice, &result.StopLoss,
			&tpRaw, &gate1Raw, &gate2Raw, &gate3Raw, &result.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning signal: %w", err)
		}
		result.Symbol = symbol
		result.SignalType = domain.SignalType(signalType)
		if err := json.Unmarshal(tpRaw, &result.TakeProfit); err != nil {
			return nil, fmt.Errorf("unmarshaling take_profit: %w", err)
		}
		if err := json.Unmarshal(gate1Raw, &result.Gate1); err != nil {
			return nil, fmt.Errorf("unmarshaling gate1: %w", err)
		}
		if err := json.Unmarshal(gate2Raw, &result.Gate2); err != nil {
			return nil, fmt.Errorf("unmarshaling gate2: %w", err)
		}
		if err := json.Unmarshal(gate3Raw, &result.Gate3); err != nil {
			return nil, fmt.Errorf("unmarshaling gate3: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating signals: %w", err)
	}
	return results, nil
}
