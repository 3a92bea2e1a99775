// Package metrics exposes cycle counters and latencies to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/ports"
)

// Registry holds the tracker's collectors.
type Registry struct {
	Cycles        *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
	Notified      prometheus.Counter
	FetchErrors   *prometheus.CounterVec
}

var _ ports.Metrics = (*Registry)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earnings_tracker_cycles_total",
				Help: "Completed cycles by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "earnings_tracker_cycle_duration_seconds",
				Help:    "Cycle wall time in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		Notified: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "earnings_tracker_reports_notified_total",
				Help: "Reports included in successfully sent emails",
			},
		),
		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "earnings_tracker_fetch_errors_total",
				Help: "Upstream fetch failures by source",
			},
			[]string{"source"},
		),
	}
	if reg != nil {
		reg.MustRegister(r.Cycles, r.CycleDuration, r.Notified, r.FetchErrors)
	}
	return r
}

func (r *Registry) ObserveCycle(kind string, outcome domain.Outcome, elapsed time.Duration) {
	r.Cycles.WithLabelValues(kind, string(outcome)).Inc()
	r.CycleDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (r *Registry) AddNotified(n int) {
	if n > 0 {
		r.Notified.Add(float64(n))
	}
}

func (r *Registry) FetchFailed(source string) {
	r.FetchErrors.WithLabelValues(source).Inc()
}
