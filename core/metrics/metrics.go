package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flush trigger label values.
const (
	TriggerSize  = "size"
	TriggerTimer = "timer"
)

// Metrics holds all Prometheus metrics for the sync engine.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	FlushesTotal       *prometheus.CounterVec
	FlushDuration      prometheus.Histogram
	RecordsUpserted    prometheus.Counter
	UpsertFailures     prometheus.Counter
	BufferedRecords    prometheus.Gauge
	FeedEvents         *prometheus.CounterVec
	FeedDecodeFailures prometheus.Counter
	ReindexedRecords   prometheus.Counter
	CaughtUpRecords    prometheus.Counter
	GeneratedCustomers prometheus.Counter
}

// New creates and registers all metrics with reg.
// Use prometheus.DefaultRegisterer in the process and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FlushesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anonsync_flushes_total",
			Help: "Total number of non-empty batch flushes by trigger",
		}, []string{"trigger"}),
		FlushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "anonsync_flush_duration_seconds",
			Help:    "Time to upsert one flushed batch into the mirror",
			Buckets: prometheus.DefBuckets,
		}),
		RecordsUpserted: f.NewCounter(prometheus.CounterOpts{
			Name: "anonsync_records_upserted_total",
			Help: "Total number of anonymized records upserted by batch flushes",
		}),
		UpsertFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "anonsync_upsert_failures_total",
			Help: "Total number of per-record upsert failures during flushes",
		}),
		BufferedRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "anonsync_buffered_records",
			Help: "Current number of anonymized records waiting for a flush",
		}),
		FeedEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anonsync_feed_events_total",
			Help: "Total number of change feed notifications received by operation",
		}, []string{"operation"}),
		FeedDecodeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "anonsync_feed_decode_failures_total",
			Help: "Total number of change feed notifications whose document could not be decoded",
		}),
		ReindexedRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "anonsync_reindexed_records_total",
			Help: "Total number of records written by full reindex",
		}),
		CaughtUpRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "anonsync_caught_up_records_total",
			Help: "Total number of records inserted by startup catch-up",
		}),
		GeneratedCustomers: f.NewCounter(prometheus.CounterOpts{
			Name: "anonsync_generated_customers_total",
			Help: "Total number of synthetic customers inserted by the generator",
		}),
	}
}

// ObserveFlush records one completed flush.
func (m *Metrics) ObserveFlush(trigger string, size, failed int, took time.Duration) {
	if m == nil {
		return
	}
	m.FlushesTotal.WithLabelValues(trigger).Inc()
	m.FlushDuration.Observe(took.Seconds())
	m.RecordsUpserted.Add(float64(size - failed))
	m.UpsertFailures.Add(float64(failed))
}

// SetBuffered reports the current buffer length.
func (m *Metrics) SetBuffered(n int) {
	if m == nil {
		return
	}
	m.BufferedRecords.Set(float64(n))
}

// IncFeedEvent counts one change notification.
func (m *Metrics) IncFeedEvent(operation string) {
	if m == nil {
		return
	}
	m.FeedEvents.WithLabelValues(operation).Inc()
}

// IncFeedDecodeFailure counts one undecodable notification.
func (m *Metrics) IncFeedDecodeFailure() {
	if m == nil {
		return
	}
	m.FeedDecodeFailures.Inc()
}

// AddReindexed counts records written by a reindex chunk.
func (m *Metrics) AddReindexed(n int) {
	if m == nil {
		return
	}
	m.ReindexedRecords.Add(float64(n))
}

// AddCaughtUp counts records inserted by catch-up.
func (m *Metrics) AddCaughtUp(n int) {
	if m == nil {
		return
	}
	m.CaughtUpRecords.Add(float64(n))
}

// AddGenerated counts synthetic customers.
func (m *Metrics) AddGenerated(n int) {
	if m == nil {
		return
	}
	m.GeneratedCustomers.Add(float64(n))
}
