// Package metrics exposes the agent's Prometheus instruments.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "ledgercron"

// Result labels.
const (
	ResultResponse = "response"
	ResultFailure  = "failure"
)

// Storage write status labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Metrics struct {
	firingsTotal      *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	inflight          prometheus.Gauge
	storageWrites     *prometheus.CounterVec
	registryQueries   prometheus.Counter
	skippedFirings    prometheus.Counter
}

// New creates the instruments and registers them on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		firingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "firings_total",
				Help:      "Total number of completed firings",
			},
			[]string{"endpoint", "result"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of firings, from dispatch to recorded outcome",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"result"},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "inflight_executions",
				Help:      "Number of firings currently executing",
			},
		),
		storageWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "storage_writes_total",
				Help:      "Total number of record writes",
			},
			[]string{"record", "status"},
		),
		registryQueries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "registry_queries_total",
				Help:      "Total number of symbol registry queries",
			},
		),
		skippedFirings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "skipped_firings_total",
				Help:      "Firings skipped because the previous firing of the task was still running",
			},
		),
	}

	reg.MustRegister(
		m.firingsTotal,
		m.executionDuration,
		m.inflight,
		m.storageWrites,
		m.registryQueries,
		m.skippedFirings,
	)

	return m
}

func (m *Metrics) RecordFiring(endpoint, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.firingsTotal.WithLabelValues(endpoint, result).Inc()
	m.executionDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *Metrics) SetInflight(count int64) {
	if m == nil {
		return
	}
	m.inflight.Set(float64(count))
}

func (m *Metrics) RecordStorageWrite(record, status string) {
	if m == nil {
		return
	}
	m.storageWrites.WithLabelValues(record, status).Inc()
}

func (m *Metrics) RecordRegistryQuery() {
	if m == nil {
		return
	}
	m.registryQueries.Inc()
}

func (m *Metrics) RecordSkippedFiring() {
	if m == nil {
		return
	}
	m.skippedFirings.Inc()
}
