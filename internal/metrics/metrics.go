// Package metrics defines the Prometheus collectors for the audit
// service and registers them on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	AuditsStarted  prometheus.Counter
	AuditsFinished *prometheus.CounterVec
	PagesCrawled   prometheus.Counter
	ProgressEvents *prometheus.CounterVec

	AnalyzerDuration *prometheus.HistogramVec
	AnalyzerOutcomes *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	SSEClients   prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		AuditsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteaudit_audits_started_total",
			Help: "Number of audits started.",
		}),
		AuditsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteaudit_audits_finished_total",
			Help: "Number of audits finished, by terminal status.",
		}, []string{"status"}),
		PagesCrawled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteaudit_pages_crawled_total",
			Help: "Number of pages rendered and stored across all audits.",
		}),
		ProgressEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteaudit_progress_events_total",
			Help: "Number of progress events published, by audit status.",
		}, []string{"status"}),
		AnalyzerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "siteaudit_analyzer_duration_seconds",
			Help:    "Wall time per analyzer unit.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"unit"}),
		AnalyzerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteaudit_analyzer_outcomes_total",
			Help: "Analyzer unit outcomes, by unit and outcome.",
		}, []string{"unit", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteaudit_http_requests_total",
			Help: "HTTP requests served, by method, route, and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "siteaudit_http_request_duration_seconds",
			Help:    "HTTP request latency, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		SSEClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "siteaudit_sse_clients",
			Help: "Currently connected progress stream clients.",
		}),
	}

	reg.MustRegister(
		m.AuditsStarted,
		m.AuditsFinished,
		m.PagesCrawled,
		m.ProgressEvents,
		m.AnalyzerDuration,
		m.AnalyzerOutcomes,
		m.HTTPRequests,
		m.HTTPDuration,
		m.SSEClients,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
