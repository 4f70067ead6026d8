package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"RPCCallsTotal", RPCCallsTotal},
		{"RPCRateLimitWaits", RPCRateLimitWaits},
		{"RPCCircuitTransitions", RPCCircuitTransitions},
		{"ChainReadFailures", ChainReadFailures},
		{"WatcherHeadBlock", WatcherHeadBlock},
		{"WatcherEventsTotal", WatcherEventsTotal},
		{"SyncRefreshTotal", SyncRefreshTotal},
		{"SyncRefreshLatency", SyncRefreshLatency},
		{"SyncSnapshotParcels", SyncSnapshotParcels},
		{"SyncBulkOverwrites", SyncBulkOverwrites},
		{"SyncParcelErrors", SyncParcelErrors},
		{"ConfirmOutcomes", ConfirmOutcomes},
		{"ConfirmInFlight", ConfirmInFlight},
		{"ConfirmLatency", ConfirmLatency},
		{"MirrorWritesTotal", MirrorWritesTotal},
		{"MirrorStaleMarkersPurged", MirrorStaleMarkersPurged},
		{"DBPoolOpen", DBPoolOpen},
		{"DBPoolInUse", DBPoolInUse},
		{"DBPoolIdle", DBPoolIdle},
		{"DBPoolWaitCount", DBPoolWaitCount},
		{"APIRequestsTotal", APIRequestsTotal},
		{"APIRateLimited", APIRateLimited},
		{"NotifyPublishErrors", NotifyPublishErrors},
	}

	for _, v := range vars {
		assert.NotNilf(t, v.val, "%s should not be nil", v.name)
	}
}

func TestMetrics_CounterIncrementNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { RPCCallsTotal.WithLabelValues("test-network", "eth_call", "ok").Inc() })
	assert.NotPanics(t, func() { RPCRateLimitWaits.WithLabelValues("test-network").Inc() })
	assert.NotPanics(t, func() { WatcherEventsTotal.WithLabelValues("test-network", "listed").Inc() })
	assert.NotPanics(t, func() { SyncRefreshTotal.WithLabelValues("test-network", "applied").Inc() })
	assert.NotPanics(t, func() { SyncParcelErrors.WithLabelValues("test-network", "read").Inc() })
	assert.NotPanics(t, func() { ConfirmOutcomes.WithLabelValues("test-network", "success").Inc() })
	assert.NotPanics(t, func() { MirrorWritesTotal.WithLabelValues("add_marker", "ok").Inc() })
	assert.NotPanics(t, func() { APIRequestsTotal.WithLabelValues("/v1/terras", "200").Inc() })
	assert.NotPanics(t, func() { NotifyPublishErrors.WithLabelValues("redis").Inc() })
}

func TestMetrics_HistogramObserveNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { SyncRefreshLatency.WithLabelValues("test-network").Observe(1.5) })
	assert.NotPanics(t, func() { ConfirmLatency.WithLabelValues("test-network").Observe(12) })
}

func TestMetrics_GaugeSetNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { WatcherHeadBlock.WithLabelValues("test-network").Set(42.0) })
	assert.NotPanics(t, func() { SyncSnapshotParcels.WithLabelValues("test-network").Set(42.0) })
	assert.NotPanics(t, func() { ConfirmInFlight.WithLabelValues("test-network").Inc() })
	assert.NotPanics(t, func() { DBPoolOpen.Set(42.0) })
	assert.NotPanics(t, func() { DBPoolInUse.Set(42.0) })
	assert.NotPanics(t, func() { DBPoolIdle.Set(42.0) })
	assert.NotPanics(t, func() { DBPoolWaitCount.Set(42.0) })
}

func TestMetrics_CounterValue(t *testing.T) {
	t.Parallel()

	c := ChainReadFailures.WithLabelValues("value-test")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func collectOne(t *testing.T, c prometheus.Collector) *dto.Metric {
	t.Helper()
	metricCh := make(chan prometheus.Metric, 1)
	c.Collect(metricCh)

	metric := <-metricCh
	dtoMetric := &dto.Metric{}
	require.NoError(t, metric.Write(dtoMetric))
	return dtoMetric
}

func TestMetrics_HistogramSampleCount(t *testing.T) {
	t.Parallel()

	h, ok := ConfirmLatency.WithLabelValues("dto-test").(prometheus.Histogram)
	require.True(t, ok)
	h.Observe(3)
	h.Observe(30)

	m := collectOne(t, h)
	assert.Equal(t, uint64(2), m.GetHistogram().GetSampleCount())
	assert.InDelta(t, 33.0, m.GetHistogram().GetSampleSum(), 1e-9)
}

func TestMetrics_GaugeValue(t *testing.T) {
	t.Parallel()

	g := SyncSnapshotParcels.WithLabelValues("dto-test")
	g.Set(17)
	assert.Equal(t, 17.0, collectOne(t, g).GetGauge().GetValue())
}
