// Package metrics holds the Prometheus metrics of the reply service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reply outcomes recorded in ChatReplies.
const (
	OutcomeAnswered      = "answered"
	OutcomeFAQOnly       = "faq_only"
	OutcomeNoMatch       = "no_match"
	OutcomeEmpty         = "empty"
	OutcomeProviderError = "provider_error"
	OutcomeInternalError = "internal_error"
)

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	RateLimitHits   *prometheus.CounterVec

	ChatReplies   *prometheus.CounterVec
	FAQLookups    *prometheus.CounterVec
	FAQMatchScore prometheus.Histogram
	FAQEntries    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faqchat_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faqchat_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "faqchat_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faqchat_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faqchat_rate_limit_hits_total",
				Help: "Total number of rate limit hits by client",
			},
			[]string{"client"},
		),
		ChatReplies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faqchat_chat_replies_total",
				Help: "Replies sent by /chat, by outcome",
			},
			[]string{"outcome"},
		),
		FAQLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faqchat_faq_lookups_total",
				Help: "FAQ lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		FAQMatchScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faqchat_faq_match_score",
				Help:    "Similarity score of the best FAQ match",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),
		FAQEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "faqchat_faq_entries",
				Help: "Number of entries in the FAQ store",
			},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize some default metrics
	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.RequestsTotal.WithLabelValues("/metrics", "200").Add(0)
	m.RequestDuration.WithLabelValues("/health").Observe(0)
	m.RequestDuration.WithLabelValues("/metrics").Observe(0)
	for _, outcome := range []string{OutcomeAnswered, OutcomeFAQOnly, OutcomeNoMatch, OutcomeEmpty, OutcomeProviderError, OutcomeInternalError} {
		m.ChatReplies.WithLabelValues(outcome).Add(0)
	}
	m.FAQLookups.WithLabelValues("hit").Add(0)
	m.FAQLookups.WithLabelValues("miss").Add(0)

	return m
}

// Registry returns the registry the metrics are registered on, so other
// components (circuit breakers, providers) can add theirs.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false, // Disable OpenMetrics format to avoid escaping=values
	})
}
