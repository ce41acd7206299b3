package metricsx

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	require.NoError(t, (<-ch).Write(m))
	return m.GetCounter().GetValue()
}

func TestRegistry_RecordCollection(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.RecordCollection("1h", "ok", 0.25, 3)
	require.Equal(t, float64(3), counterValue(t, reg.BarsCollected.WithLabelValues("1h")))

	reg.RecordCollection("1h", "error", 0.1, 0)
	require.Equal(t, float64(1), counterValue(t, reg.CollectionErrors.WithLabelValues("1h")))
}

func TestRegistry_RecordEventAndSignal(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.RecordEvent("signal")
	require.Equal(t, float64(1), counterValue(t, reg.EventsProcessed.WithLabelValues("signal")))

	reg.RecordSignal("BUY")
	require.Equal(t, float64(1), counterValue(t, reg.SignalsEmitted.WithLabelValues("BUY")))
}

func TestRegistry_RecordGatePass(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.RecordGatePass("gate1")
	reg.RecordGatePass("gate1")
	require.Equal(t, float64(2), counterValue(t, reg.GatePasses.WithLabelValues("gate1")))
}

func TestRegistry_CacheHitsAndMisses(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	reg.RecordCacheHit("snapshot")
	reg.RecordCacheMiss("snapshot")
	require.Equal(t, float64(1), counterValue(t, reg.CacheHits.WithLabelValues("snapshot")))
	require.Equal(t, float64(1), counterValue(t, reg.CacheMisses.WithLabelValues("snapshot")))
}

func TestBreakerStateValue(t *testing.T) {
	require.Equal(t, float64(0), breakerStateValue("closed"))
	require.Equal(t, float64(1), breakerStateValue("half-open"))
	require.Equal(t, float64(2), breakerStateValue("open"))
}

func TestRegistry_SetBreakerState(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())
	reg.SetBreakerState("marketdata.yahoo", "open")

	gauge := &dto.Metric{}
	require.NoError(t, reg.BreakerState.WithLabelValues("marketdata.yahoo").Write(gauge))
	require.Equal(t, float64(2), gauge.GetGauge().GetValue())
}
