package metrics_test

import (
	"testing"
	"time"

	"anon-sync/core/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveFlush(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveFlush(metrics.TriggerSize, 10, 2, 15*time.Millisecond)
	m.ObserveFlush(metrics.TriggerTimer, 3, 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlushesTotal.WithLabelValues(metrics.TriggerSize)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlushesTotal.WithLabelValues(metrics.TriggerTimer)))
	assert.Equal(t, 11.0, testutil.ToFloat64(m.RecordsUpserted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpsertFailures))
}

func TestCounters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.IncFeedEvent("insert")
	m.IncFeedEvent("insert")
	m.IncFeedDecodeFailure()
	m.AddReindexed(100)
	m.AddCaughtUp(7)
	m.AddGenerated(4)
	m.SetBuffered(12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedEvents.WithLabelValues("insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedDecodeFailures))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.ReindexedRecords))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.CaughtUpRecords))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.GeneratedCustomers))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.BufferedRecords))
}

func TestNilReceiver(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveFlush(metrics.TriggerSize, 1, 0, time.Millisecond)
		m.SetBuffered(1)
		m.IncFeedEvent("update")
		m.IncFeedDecodeFailure()
		m.AddReindexed(1)
		m.AddCaughtUp(1)
		m.AddGenerated(1)
	})
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not panic
	assert.NotPanics(t, func() {
		metrics.New(prometheus.NewRegistry())
		metrics.New(prometheus.NewRegistry())
	})
}
