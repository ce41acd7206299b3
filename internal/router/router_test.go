package router

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	calls int32
}

func (d *fakeDispatcher) ProcessUnprocessedEvents(ctx context.Context, limit int) error {
	atomic.AddInt32(&d.calls, 1)
	return nil
}

type fakeReporter struct {
	mu      sync.Mutex
	name    string
	healthy bool
	checks  int
}

func (r *fakeReporter) Name() string { return r.name }
func (r *fakeReporter) Healthy(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks++
	return r.healthy
}

func TestRouter_StopsOnContextCancel(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	r := New(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestRouter_DispatchesOnEachPoll(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	r := New(dispatcher)
	r.pollInterval = 20 * time.Millisecond
	r.healthCheckInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go r.Run(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&dispatcher.calls) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_RunsHealthChecksOnReporters(t *testing.T) {
	reporter := &fakeReporter{name: "db", healthy: false}
	dispatcher := &fakeDispatcher{}
	r := New(dispatcher, reporter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.runHealthCheck(ctx)

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	require.Equal(t, 1, reporter.checks)
}
