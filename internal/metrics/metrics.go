// Package metrics holds the Prometheus collectors updated by builds.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docref"

// Metrics owns a private registry so several engines can coexist in one
// process. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	registrations prometheus.Counter
	links         *prometheus.CounterVec
	diagnostics   *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
}

// New creates and registers the build collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Identifiers registered across all builds.",
		}),
		links: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_total",
				Help:      "Links classified during resolution.",
			},
			[]string{"kind", "status"},
		),
		diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diagnostics_total",
				Help:      "Diagnostics reported, by kind.",
			},
			[]string{"kind"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Wall time of a full build in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"result"}, // "success" or "error"
		),
	}
	m.registry.MustRegister(m.registrations, m.links, m.diagnostics, m.buildDuration)
	return m
}

// Registry exposes the collectors for scraping or testing.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Registered counts one identifier registration.
func (m *Metrics) Registered() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

// Link counts one classified link.
func (m *Metrics) Link(kind, status string) {
	if m == nil {
		return
	}
	m.links.WithLabelValues(kind, status).Inc()
}

// Diagnostic counts one reported diagnostic.
func (m *Metrics) Diagnostic(kind string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(kind).Inc()
}

// ObserveBuild records a build duration.
func (m *Metrics) ObserveBuild(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.buildDuration.WithLabelValues(result).Observe(d.Seconds())
}

// WriteTextfile writes the current values in the node exporter textfile
// format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
