// Package metrics exposes bot counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	events         *prometheus.CounterVec
	records        *prometheus.CounterVec
	dispatchErrors *prometheus.CounterVec
	eventDuration  *prometheus.HistogramVec
}

// New registers the bot collectors, plus the Go runtime and process
// collectors, in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telegrind_events_total",
			Help: "Chat events received, by kind.",
		}, []string{"kind"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telegrind_records_total",
			Help: "Spreadsheet rows written, by record kind and action.",
		}, []string{"kind", "action"}),
		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telegrind_dispatch_errors_total",
			Help: "Events whose handling failed, by route.",
		}, []string{"route"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "telegrind_event_duration_seconds",
			Help:    "Time spent handling one event, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		m.events, m.records, m.dispatchErrors, m.eventDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Event counts one inbound event.
func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

// Record counts rows written for one record kind.
func (m *Metrics) Record(kind, action string, rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.records.WithLabelValues(kind, action).Add(float64(rows))
}

// DispatchError counts a failed event.
func (m *Metrics) DispatchError(route string) {
	if m == nil {
		return
	}
	m.dispatchErrors.WithLabelValues(route).Inc()
}

// Observe records how long a route took, in seconds.
func (m *Metrics) Observe(route string, seconds float64) {
	if m == nil {
		return
	}
	m.eventDuration.WithLabelValues(route).Observe(seconds)
}
