package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pharmxchain/pkg/domain"
)

// PrometheusMetricsRecorder exports service operation outcomes as Prometheus
// counters and histograms.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	alerts     prometheus.Counter
}

// NewPrometheusMetricsRecorder constructs a recorder and registers its
// collectors with the given registerer (prometheus.DefaultRegisterer when
// nil).
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmxchain",
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pharmxchain",
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pharmxchain",
			Name:      "low_stock_alerts_total",
			Help:      "Low-inventory notifications raised.",
		}),
	}
	reg.MustRegister(r.operations, r.durations, r.alerts)
	return r
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// Notify implements AlertSink, counting raised low-inventory alerts.
func (r *PrometheusMetricsRecorder) Notify(context.Context, domain.LowStockAlert) {
	r.alerts.Inc()
}
