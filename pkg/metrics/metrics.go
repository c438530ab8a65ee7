// Package metrics exposes Prometheus collectors for hosted layouts and
// layout engine diagnostics. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hosting"

// Metrics groups the collectors recorded by surfaces and the logger bridge.
type Metrics struct {
	Layouts       *prometheus.CounterVec
	LayoutSeconds *prometheus.HistogramVec
	StaleDiscards prometheus.Counter
	Invalidations prometheus.Counter
	Diagnostics   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which keeps tests independent of the global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Layouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layouts_total",
			Help:      "Layout computations by update mode and outcome.",
		}, []string{"mode", "result"}),
		LayoutSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_duration_seconds",
			Help:      "Time spent computing layouts.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"mode"}),
		StaleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_layouts_discarded_total",
			Help:      "Asynchronous layouts dropped because a newer context was installed.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "size_invalidations_total",
			Help:      "Completed layouts whose size differed from the mounted one.",
		}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_diagnostics_total",
			Help:      "Layout engine diagnostics by severity.",
		}, []string{"level"}),
	}
	if reg != nil {
		reg.MustRegister(m.Layouts, m.LayoutSeconds, m.StaleDiscards, m.Invalidations, m.Diagnostics)
	}
	return m
}

// ObserveLayout records one computation.
func (m *Metrics) ObserveLayout(mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Layouts.WithLabelValues(mode, result).Inc()
	m.LayoutSeconds.WithLabelValues(mode).Observe(d.Seconds())
}

// StaleDiscarded records a discarded asynchronous result.
func (m *Metrics) StaleDiscarded() {
	if m == nil {
		return
	}
	m.StaleDiscards.Inc()
}

// SizeInvalidated records a size change notification.
func (m *Metrics) SizeInvalidated() {
	if m == nil {
		return
	}
	m.Invalidations.Inc()
}

// Diagnostic records an engine diagnostic at level.
func (m *Metrics) Diagnostic(level string) {
	if m == nil {
		return
	}
	m.Diagnostics.WithLabelValues(level).Inc()
}
