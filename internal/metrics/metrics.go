package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sensorviz"

// Metrics holds the collectors for ingestion and view refreshes. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	rows      *prometheus.GaugeVec
	discarded *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_requests_total",
			Help:      "Backend queries issued, by query mode and outcome.",
		}, []string{"mode", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_request_duration_seconds",
			Help:      "Backend query latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_records",
			Help:      "Records currently held by each view.",
		}, []string{"view"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_stale_results_total",
			Help:      "Results dropped because a newer request superseded them.",
		}, []string{"view"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.rows, m.discarded)
	}
	return m
}

// ObserveRequest records one finished backend query.
func (m *Metrics) ObserveRequest(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mode, outcome).Inc()
	m.latency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// SetRecords records the size of a view's applied record set.
func (m *Metrics) SetRecords(view string, n int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(view).Set(float64(n))
}

// Discarded counts a stale result dropped by a view.
func (m *Metrics) Discarded(view string) {
	if m == nil {
		return
	}
	m.discarded.WithLabelValues(view).Inc()
}
