package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/m37335/threegate/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func sampleBar() domain.Bar {
	return domain.Bar{
		Symbol: "USDJPY", Timeframe: domain.TF1h,
		Timestamp: time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
		Open: 150.0, High: 150.5, Low: 149.8, Close: 150.2,
		Volume: 1000, Source: "yfinance", QualityScore: 1.0,
	}
}

func TestPriceRepo_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPriceRepo(db, time.Second)

	bar := sampleBar()
	mock.ExpectExec("INSERT INTO price_data").
		WithArgs(bar.Symbol, bar.Timeframe, bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close,
			bar.Volume, bar.Source, bar.QualityScore).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), bar)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceRepo_UpsertBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPriceRepo(db, time.Second)

	bars := []domain.Bar{sampleBar(), sampleBar()}
	bars[1].Timestamp = bars[1].Timestamp.Add(time.Hour)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO price_data")
	prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
	mock.ExpectCommit()

	n, err := repo.UpsertBatch(context.Background(), bars)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceRepo_UpsertBatch_Empty(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewPriceRepo(db, time.Second)

	n, err := repo.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestPriceRepo_LatestTimestamp_Found(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPriceRepo(db, time.Second)

	want := time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT MAX").
		WithArgs("USDJPY", domain.TF1h).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(want))

	got, ok, err := repo.LatestTimestamp(context.Background(), "USDJPY", domain.TF1h)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(want))
}

func TestPriceRepo_LatestTimestamp_NoRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPriceRepo(db, time.Second)

	mock.ExpectQuery("SELECT MAX").
		WithArgs("USDJPY", domain.TF1h).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	_, ok, err := repo.LatestTimestamp(context.Background(), "USDJPY", domain.TF1h)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPriceRepo_Recent_ReturnsChronological(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPriceRepo(db, time.Second)

	newer := sampleBar()
	older := sampleBar()
	older.Timestamp = newer.Timestamp.Add(-time.Hour)

	cols := []string{"symbol", "timeframe", "timestamp", "open", "high", "low", "close", "volume", "source", "quality_score", "created_at", "updated_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(newer.Symbol, newer.Timeframe, newer.Timestamp, newer.Open, newer.High, newer.Low, newer.Close, newer.Volume, newer.Source, newer.QualityScore, time.Now(), time.Now()).
		AddRow(older.Symbol, older.Timeframe, older.Timestamp, older.Open, older.High, older.Low, older.Close, older.Volume, older.Source, older.QualityScore, time.Now(), time.Now())

	mock.ExpectQuery("SELECT symbol, timeframe, timestamp").
		WithArgs("USDJPY", domain.TF1h, 2).
		WillReturnRows(rows)

	bars, err := repo.Recent(context.Background(), "USDJPY", domain.TF1h, 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.True(t, bars[0].Timestamp.Before(bars[1].Timestamp))
}
