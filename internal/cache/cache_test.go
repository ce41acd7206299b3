package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/m37335/threegate/internal/condition"
	"github.com/m37335/threegate/internal/indicators"
)

func TestCache_GetLastSignalTime_Miss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client)

	mock.ExpectGet(signalTimePrefix + "USDJPY=X").RedisNil()

	_, ok, err := c.GetLastSignalTime(context.Background(), "USDJPY=X")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_SetThenGetLastSignalTime(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client)

	want := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	mock.ExpectSet(signalTimePrefix+"USDJPY=X", want.Format(time.RFC3339Nano), time.Duration(0)).SetVal("OK")
	require.NoError(t, c.SetLastSignalTime(context.Background(), "USDJPY=X", want))

	mock.ExpectGet(signalTimePrefix + "USDJPY=X").SetVal(want.Format(time.RFC3339Nano))
	got, ok, err := c.GetLastSignalTime(context.Background(), "USDJPY=X")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, want.Equal(got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_GetLastSignalTime_RedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client)

	mock.ExpectGet(signalTimePrefix + "USDJPY=X").SetErr(redis.TxFailedErr)

	_, ok, err := c.GetLastSignalTime(context.Background(), "USDJPY=X")
	require.Error(t, err)
	require.False(t, ok)
}

func TestCache_SnapshotRoundTrip(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client)

	snap := condition.Snapshot{"1d_rsi14": indicators.Series{55.5, 56.1}}

	mock.ExpectSet(snapshotPrefix+"USDJPY=X", mock.MatchAny(), defaultSnapshotTTL).SetVal("OK")
	require.NoError(t, c.SetSnapshot(context.Background(), "USDJPY=X", snap))

	mock.ExpectGet(snapshotPrefix + "USDJPY=X").SetVal(`{"1d_rsi14":[55.5,56.1]}`)
	got, ok, err := c.GetSnapshot(context.Background(), "USDJPY=X")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_GetSnapshot_Miss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client)

	mock.ExpectGet(snapshotPrefix + "USDJPY=X").RedisNil()

	_, ok, err := c.GetSnapshot(context.Background(), "USDJPY=X")
	require.NoError(t, err)
	require.False(t, ok)
}
