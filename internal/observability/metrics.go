package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors exported by the service.
type Metrics struct {
	gatherer        prometheus.Gatherer
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rankings        *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	syncEvents      *prometheus.CounterVec
	locationReports prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry registers collectors on reg.
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		rankings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_selections_total",
			Help: "Crew selections by outcome (regular, escalated, no_match, manual).",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_transitions_total",
			Help: "Lifecycle transition attempts by action and result.",
		}, []string{"action", "result"}),
		syncEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_events_total",
			Help: "Events forwarded to the sync sink by type and result.",
		}, []string{"type", "result"}),
		locationReports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crew_location_reports_total",
			Help: "Crew location reports accepted.",
		}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.rankings,
		m.transitions,
		m.syncEvents,
		m.locationReports,
		collectors.NewGoCollector(),
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordSelection counts a dispatch decision.
func (m *Metrics) RecordSelection(outcome string) {
	if m == nil {
		return
	}
	m.rankings.WithLabelValues(outcome).Inc()
}

// RecordTransition counts a transition attempt.
func (m *Metrics) RecordTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, result).Inc()
}

// RecordSync counts a sync delivery.
func (m *Metrics) RecordSync(eventType string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.syncEvents.WithLabelValues(eventType, result).Inc()
}

// RecordLocationReport counts an accepted location report.
func (m *Metrics) RecordLocationReport() {
	if m == nil {
		return
	}
	m.locationReports.Inc()
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
