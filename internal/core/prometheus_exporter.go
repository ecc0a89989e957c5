package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports service operation metrics through a
// prometheus registry: a duration histogram, a result counter, and a rule
// violation counter, all labeled by operation.
type PrometheusMetricsRecorder struct {
	durations  *prometheus.HistogramVec
	results    *prometheus.CounterVec
	violations *prometheus.CounterVec
}

// Compile-time contract assertion.
var _ MetricsRecorder = (*PrometheusMetricsRecorder)(nil)

// NewPrometheusMetricsRecorder constructs a recorder and registers its
// collectors with the supplied registerer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	rec := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cliniccore",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Duration of clinic service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliniccore",
			Subsystem: "service",
			Name:      "operation_results_total",
			Help:      "Outcomes of clinic service operations.",
		}, []string{"operation", "status"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cliniccore",
			Subsystem: "service",
			Name:      "rule_violations_total",
			Help:      "Rule violations carried in clinic operation results.",
		}, []string{"operation"}),
	}
	for _, collector := range []prometheus.Collector{rec.durations, rec.results, rec.violations} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe records a service operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, violations int, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
	if violations > 0 {
		r.violations.WithLabelValues(operation).Add(float64(violations))
	}
}
