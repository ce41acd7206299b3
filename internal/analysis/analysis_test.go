package analysis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m37335/threegate/internal/domain"
	"github.com/m37335/threegate/internal/patterns"
	"github.com/m37335/threegate/internal/threegate"
)

type fakeLoader struct {
	catalogs map[int]*patterns.Catalog
}

func (f *fakeLoader) LoadGatePatterns(gate int) (*patterns.Catalog, error) {
	if c, ok := f.catalogs[gate]; ok {
		return c, nil
	}
	return &patterns.Catalog{Patterns: map[string]patterns.Pattern{}}, nil
}

func emptyEngine() *threegate.Engine {
	return threegate.NewEngine(&fakeLoader{catalogs: map[int]*patterns.Catalog{}}, threegate.WithRateLimitDisabled())
}

type fakePriceRepo struct {
	barsByTF map[domain.Timeframe][]domain.Bar
}

func (r *fakePriceRepo) Upsert(ctx context.Context, bar domain.Bar) error { return nil }
func (r *fakePriceRepo) UpsertBatch(ctx context.Context, bars []domain.Bar) (int, error) {
	return len(bars), nil
}
func (r *fakePriceRepo) LatestTimestamp(ctx context.Context, symbol string, tf domain.Timeframe) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (r *fakePriceRepo) Recent(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Bar, error) {
	return r.barsByTF[tf], nil
}

type fakeSignalRepo struct {
	inserted []domain.ThreeGateResult
}

func (r *fakeSignalRepo) Insert(ctx context.Context, symbol string, result domain.ThreeGateResult) (int64, error) {
	r.inserted = append(r.inserted, result)
	return int64(len(r.inserted)), nil
}
func (r *fakeSignalRepo) Recent(ctx context.Context, symbol string, limit int) ([]domain.ThreeGateResult, error) {
	return nil, nil
}

type fakeEventRepo struct {
	unprocessed []domain.Event
	marked      map[int64]*string
}

func (r *fakeEventRepo) Insert(ctx context.Context, evt domain.Event) (int64, error) { return 0, nil }
func (r *fakeEventRepo) Unprocessed(ctx context.Context, eventType domain.EventType, limit int) ([]domain.Event, error) {
	return r.unprocessed, nil
}
func (r *fakeEventRepo) MarkProcessed(ctx context.Context, id int64, errMsg *string) error {
	if r.marked == nil {
		r.marked = map[int64]*string{}
	}
	r.marked[id] = errMsg
	return nil
}

func sufficientBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	close := 150.0
	for i := 0; i < n; i++ {
		close += 0.01
		bars[i] = domain.Bar{
			Open: close - 0.005, High: close + 0.02, Low: close - 0.02, Close: close, Volume: 100,
		}
	}
	return bars
}

func TestService_SkipsWhenNoNewData(t *testing.T) {
	prices := &fakePriceRepo{}
	signals := &fakeSignalRepo{}
	events := &fakeEventRepo{}
	svc := New(emptyEngine(), prices, signals, events)

	result, err := svc.ProcessDataCollectionEvent(context.Background(), "USDJPY=X", 0)
	require.NoError(t, err)
	require.Nil(t, result)
	require.Equal(t, int64(1), svc.Stats().SkippedNoNewData)
}

func TestService_ErrorsWhenNoTimeframeHasEnoughHistory(t *testing.T) {
	prices := &fakePriceRepo{barsByTF: map[domain.Timeframe][]domain.Bar{
		domain.TF1d: sufficientBars(10),
	}}
	signals := &fakeSignalRepo{}
	events := &fakeEventRepo{}
	svc := New(emptyEngine(), prices, signals, events)

	_, err := svc.ProcessDataCollectionEvent(context.Background(), "USDJPY=X", 5)
	require.Error(t, err)
	require.Equal(t, int64(1), svc.Stats().IndicatorFailures)
}

func TestService_NoSignalWhenCatalogsAreEmpty(t *testing.T) {
	prices := &fakePriceRepo{barsByTF: map[domain.Timeframe][]domain.Bar{
		domain.TF1d: sufficientBars(260),
	}}
	signals := &fakeSignalRepo{}
	events := &fakeEventRepo{}
	svc := New(emptyEngine(), prices, signals, events)

	result, err := svc.ProcessDataCollectionEvent(context.Background(), "USDJPY=X", 5)
	require.NoError(t, err)
	require.Nil(t, result)
	require.Empty(t, signals.inserted)
}

func TestService_ProcessUnprocessedEvents_MarksBadPayload(t *testing.T) {
	prices := &fakePriceRepo{}
	signals := &fakeSignalRepo{}
	events := &fakeEventRepo{unprocessed: []domain.Event{
		{ID: 1, EventData: []byte("not json")},
	}}
	svc := New(emptyEngine(), prices, signals, events)

	err := svc.ProcessUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Contains(t, events.marked, int64(1))
	require.NotNil(t, events.marked[1])
}

func TestService_ProcessUnprocessedEvents_MarksProcessedOnSuccess(t *testing.T) {
	payload, _ := json.Marshal(domain.DataCollectionPayload{Symbol: "USDJPY=X", TotalNewRecords: 0})
	prices := &fakePriceRepo{}
	signals := &fakeSignalRepo{}
	events := &fakeEventRepo{unprocessed: []domain.Event{
		{ID: 2, EventData: payload},
	}}
	svc := New(emptyEngine(), prices, signals, events)

	err := svc.ProcessUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Contains(t, events.marked, int64(2))
	require.Nil(t, events.marked[2])
}
