package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics records async operation envelope transitions per slice.
type OperationMetrics struct {
	dispatched *prometheus.CounterVec
	fulfilled  *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	stale      *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewOperationMetrics registers the envelope metrics on the provided registerer.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	if reg == nil {
		return &OperationMetrics{}
	}
	labels := []string{"slice", "operation"}
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      name,
			Help:      help,
		}, labels)
	}
	m := &OperationMetrics{
		dispatched: counter("operation_dispatched_total", "Operations that entered the pending state."),
		fulfilled:  counter("operation_fulfilled_total", "Operations whose result was applied."),
		rejected:   counter("operation_rejected_total", "Operations that failed."),
		stale:      counter("operation_stale_total", "Completions discarded because a newer dispatch exists."),
		dropped:    counter("operation_dropped_total", "Completions discarded because the owning scope closed."),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "operation_duration_seconds",
			Help:      "Time between dispatch and completion of an operation.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
	reg.MustRegister(m.dispatched, m.fulfilled, m.rejected, m.stale, m.dropped, m.duration)
	return m
}

func (m *OperationMetrics) Dispatched(slice, op string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(normalizeLabel(slice), normalizeLabel(op)).Inc()
}

func (m *OperationMetrics) Fulfilled(slice, op string, took time.Duration) {
	if m == nil || m.fulfilled == nil {
		return
	}
	m.fulfilled.WithLabelValues(normalizeLabel(slice), normalizeLabel(op)).Inc()
	m.observe(slice, op, took)
}

func (m *OperationMetrics) Rejected(slice, op string, took time.Duration) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(slice), normalizeLabel(op)).Inc()
	m.observe(slice, op, took)
}

func (m *OperationMetrics) Stale(slice, op string) {
	if m == nil || m.stale == nil {
		return
	}
	m.stale.WithLabelValues(normalizeLabel(slice), normalizeLabel(op)).Inc()
}

func (m *OperationMetrics) Dropped(slice, op string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(slice), normalizeLabel(op)).Inc()
}

func (m *OperationMetrics) observe(slice, op string, took time.Duration) {
	if m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(slice), normalizeLabel(op)).Observe(took.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
