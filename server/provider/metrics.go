package provider

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// initializeMetrics sets up Prometheus metrics
func (m *Manager) initializeMetrics(registry prometheus.Registerer) error {
	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "faqchat_provider_requests_total",
		Help: "Provider requests by provider and status (success, error, rejected)",
	}, []string{"provider", "status"})

	m.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "faqchat_provider_request_latency_seconds",
		Help: "Latency of provider requests",
	}, []string{"provider"})

	m.deduplicatedRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "faqchat_deduplicated_requests_total",
		Help: "Number of deduplicated requests",
	})

	m.healthyProviders = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "faqchat_healthy_providers",
		Help: "Whether each provider is currently healthy (1) or not (0)",
	}, []string{"provider"})

	if registry == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestLatency, m.deduplicatedRequests, m.healthyProviders} {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("register provider metrics: %w", err)
		}
	}
	return nil
}
