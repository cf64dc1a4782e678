package dynamodb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-operation counters and latency for the stores. A nil
// *Metrics is a valid no-op collector, so instrumentation is opt-in and never
// alters operation semantics.
type Metrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewMetrics creates a collector and registers its metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authstore_operations_total",
			Help: "Total store operations, by store and operation.",
		}, []string{"store", "operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authstore_operation_failures_total",
			Help: "Failed store operations, by store and operation.",
		}, []string{"store", "operation"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authstore_operation_duration_seconds",
			Help:    "Store operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"store", "operation"}),
	}

	reg.MustRegister(m.operations, m.failures, m.latency)
	return m
}

// track starts timing an operation and returns the completion callback.
func (m *Metrics) track(store, operation string) func(error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	return func(err error) {
		m.operations.WithLabelValues(store, operation).Inc()
		m.latency.WithLabelValues(store, operation).Observe(time.Since(start).Seconds())
		if err != nil {
			m.failures.WithLabelValues(store, operation).Inc()
		}
	}
}
