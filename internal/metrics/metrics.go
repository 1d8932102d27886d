// Package metrics exposes the runtime's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors on a private registry so
// tests can create fresh instances without collisions.
type Metrics struct {
	Registry *prometheus.Registry

	EventsEmitted *prometheus.CounterVec
	EventsFailed  *prometheus.CounterVec
	EventsSkipped *prometheus.CounterVec
	Deliveries    *prometheus.CounterVec
	Restarts      *prometheus.CounterVec
	InFlight      *prometheus.GaugeVec
	Lag           *prometheus.GaugeVec
}

// New creates a metrics collector backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventforge_events_emitted_total",
			Help: "Rendered events handed to the dispatcher",
		}, []string{"pipeline"}),
		EventsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventforge_events_failed_total",
			Help: "Render failures and exhausted deliveries",
		}, []string{"pipeline"}),
		EventsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventforge_events_skipped_total",
			Help: "Ticks dropped by the overdue-drop pacing policy",
		}, []string{"pipeline"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventforge_deliveries_total",
			Help: "Terminal per-sink delivery outcomes",
		}, []string{"pipeline", "sink", "result"}),
		Restarts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventforge_pipeline_restarts_total",
			Help: "Failure-triggered pipeline restarts",
		}, []string{"pipeline"}),
		InFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eventforge_events_in_flight",
			Help: "Submitted events not yet terminally resolved",
		}, []string{"pipeline"}),
		Lag: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eventforge_pipeline_lag_seconds",
			Help: "How far the last emitted tick was behind its schedule",
		}, []string{"pipeline"}),
	}
}
