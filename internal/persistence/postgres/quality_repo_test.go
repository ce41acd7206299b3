package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/m37335/threegate/internal/domain"
)

func TestQualityRepo_LogCollection(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewQualityRepo(db, time.Second)

	mock.ExpectExec("INSERT INTO data_collection_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.LogCollection(context.Background(), domain.DataCollectionLog{
		Symbol:       "USDJPY",
		Timeframe:    "1h",
		RecordsSaved: 12,
		Success:      true,
		DurationMS:   340,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQualityRepo_RecordQuality(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewQualityRepo(db, time.Second)

	mock.ExpectExec("INSERT INTO data_quality_metrics").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.RecordQuality(context.Background(), domain.DataQualityMetric{
		Symbol:       "USDJPY",
		Timeframe:    "1h",
		Timestamp:    time.Now(),
		QualityScore: 1.0,
		WellFormed:   true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
