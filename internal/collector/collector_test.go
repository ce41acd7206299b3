package collector

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m37335/threegate/internal/domain"
)

type fakeProvider struct {
	mu    sync.Mutex
	bars  map[domain.Timeframe][]domain.Bar
	calls int
	err   error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, from, to time.Time) ([]domain.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.bars[tf], nil
}

type fakePriceRepo struct {
	mu      sync.Mutex
	latest  map[domain.Timeframe]time.Time
	stored  []domain.Bar
}

func (r *fakePriceRepo) Upsert(ctx context.Context, bar domain.Bar) error { return nil }

func (r *fakePriceRepo) UpsertBatch(ctx context.Context, bars []domain.Bar) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, bars...)
	return len(bars), nil
}

func (r *fakePriceRepo) LatestTimestamp(ctx context.Context, symbol string, tf domain.Timeframe) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.latest[tf]
	return ts, ok, nil
}

func (r *fakePriceRepo) Recent(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	return nil, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *fakeEventRepo) Insert(ctx context.Context, evt domain.Event) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return int64(len(r.events)), nil
}

func (r *fakeEventRepo) Unprocessed(ctx context.Context, eventType domain.EventType, limit int) ([]domain.Event, error) {
	return nil, nil
}

func (r *fakeEventRepo) MarkProcessed(ctx context.Context, id int64, errMsg *string) error { return nil }

type fakeQualityRepo struct {
	mu    sync.Mutex
	logs  []domain.DataCollectionLog
	metrics []domain.DataQualityMetric
}

func (r *fakeQualityRepo) LogCollection(ctx context.Context, log domain.DataCollectionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeQualityRepo) RecordQuality(ctx context.Context, metric domain.DataQualityMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, metric)
	return nil
}

func newBar(tf domain.Timeframe, ts time.Time) domain.Bar {
	return domain.Bar{
		Symbol: "USDJPY=X", Timeframe: tf, Timestamp: ts,
		Open: 150, High: 150.5, Low: 149.5, Close: 150.2, Volume: 100,
	}
}

func TestCollector_CollectAll_SavesAndPublishesEvent(t *testing.T) {
	now := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC)

	bars := map[domain.Timeframe][]domain.Bar{
		domain.TF5m: {newBar(domain.TF5m, now)},
	}
	provider := &fakeProvider{bars: bars}
	prices := &fakePriceRepo{latest: map[domain.Timeframe]time.Time{
		domain.TF5m: now.Add(-time.Hour), domain.TF15m: now, domain.TF1h: now, domain.TF4h: now, domain.TF1d: now,
	}}
	events := &fakeEventRepo{}
	quality := &fakeQualityRepo{}

	c := New("USDJPY=X", provider, prices, events, quality)
	c.now = func() time.Time { return now }
	c.pacingSleep = time.Millisecond

	results, err := c.CollectAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, results[domain.TF5m])
	require.Equal(t, 0, results[domain.TF15m])

	require.Len(t, events.events, 1, "a completion event should be published when total_new_records > 0")
	var payload domain.DataCollectionPayload
	require.NoError(t, json.Unmarshal(events.events[0].EventData, &payload))
	require.Equal(t, 1, payload.TotalNewRecords)
	require.Equal(t, "USDJPY=X", payload.Symbol)

	require.Equal(t, 5, provider.calls)
	require.Len(t, quality.logs, 5)
}

func TestCollector_CollectAll_NoNewData_NoEvent(t *testing.T) {
	now := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC)

	provider := &fakeProvider{bars: map[domain.Timeframe][]domain.Bar{}}
	prices := &fakePriceRepo{latest: map[domain.Timeframe]time.Time{
		domain.TF5m: now, domain.TF15m: now, domain.TF1h: now, domain.TF4h: now, domain.TF1d: now,
	}}
	events := &fakeEventRepo{}
	quality := &fakeQualityRepo{}

	c := New("USDJPY=X", provider, prices, events, quality)
	c.now = func() time.Time { return now }
	c.pacingSleep = time.Millisecond

	results, err := c.CollectAll(context.Background())
	require.NoError(t, err)
	for _, n := range results {
		require.Equal(t, 0, n)
	}
	require.Empty(t, events.events)
}

func TestCollector_CollectAll_SeedsLookbackWhenNoHistory(t *testing.T) {
	now := time.Date(2025, 9, 7, 12, 0, 0, 0, time.UTC)

	provider := &fakeProvider{bars: map[domain.Timeframe][]domain.Bar{}}
	prices := &fakePriceRepo{latest: map[domain.Timeframe]time.Time{}}
	events := &fakeEventRepo{}
	quality := &fakeQualityRepo{}

	c := New("USDJPY=X", provider, prices, events, quality)
	c.now = func() time.Time { return now }
	c.pacingSleep = time.Millisecond

	_, err := c.CollectAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, provider.calls)
}

func TestCollector_Run_StopsOnContextCancel(t *testing.T) {
	now := time.Now()
	provider := &fakeProvider{bars: map[domain.Timeframe][]domain.Bar{}}
	prices := &fakePriceRepo{latest: map[domain.Timeframe]time.Time{
		domain.TF5m: now, domain.TF15m: now, domain.TF1h: now, domain.TF4h: now, domain.TF1d: now,
	}}
	events := &fakeEventRepo{}
	quality := &fakeQualityRepo{}

	c := New("USDJPY=X", provider, prices, events, quality)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
