package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/m37335/threegate/internal/domain"
)

func sampleResult() domain.ThreeGateResult {
	return domain.ThreeGateResult{
		Symbol:            "USDJPY",
		Gate1:             domain.GateResult{Valid: true, Pattern: "trending_market_bullish", Confidence: 0.8},
		Gate2:             domain.GateResult{Valid: true, Pattern: "pullback_setup", Confidence: 0.7},
		Gate3:             domain.GateResult{Valid: true, Pattern: "breakout_up", Confidence: 0.9},
		OverallConfidence: 0.8,
		SignalType:        domain.SignalBuy,
		EntryPrice:        150.0,
		StopLoss:          149.5,
		TakeProfit:        [3]float64{151.0, 151.5, 152.0},
		Timestamp:         time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
	}
}

func TestSignalRepo_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSignalRepo(db, time.Second)

	mock.ExpectQuery("INSERT INTO three_gate_signals").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := repo.Insert(context.Background(), "USDJPY", sampleResult())
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignalRepo_Recent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSignalRepo(db, time.Second)

	want := sampleResult()
	tp, err := json.Marshal(want.TakeProfit)
	require.NoError(t, err)
	g1, err := json.Marshal(want.Gate1)
	require.NoError(t, err)
	g2, err := json.Marshal(want.Gate2)
	require.NoError(t, err)
	g3, err := json.Marshal(want.Gate3)
	require.NoError(t, err)

	cols := []string{"signal_type", "overall_confidence", "entry_price", "stop_loss", "take_profit", "gate1", "gate2", "gate3", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(string(want.SignalType), want.OverallConfidence, want.EntryPrice, want.StopLoss, tp, g1, g2, g3, want.Timestamp)

	mock.ExpectQuery("SELECT signal_type").
		WithArgs("USDJPY", 5).
		WillReturnRows(rows)

	results, err := repo.Recent(context.Background(), "USDJPY", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, domain.SignalBuy, results[0].SignalType)
	require.Equal(t, want.TakeProfit, results[0].TakeProfit)
	require.Equal(t, want.Gate3.Pattern, results[0].Gate3.Pattern)
}
