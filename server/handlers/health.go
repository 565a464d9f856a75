package handlers

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/teilomillet/faqchat/server/provider"
)

// Health statuses reported by HealthHandler.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Counter reports the number of FAQ entries. *faq.Store implements it.
type Counter interface {
	Len() int
}

// ProviderReporter describes the upstream providers. *provider.Manager
// implements it.
type ProviderReporter interface {
	Available() bool
	Status() []provider.ProviderStatus
}

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status     string                    `json:"status"`
	FAQEntries int                       `json:"faq_entries"`
	Upstream   string                    `json:"upstream"`
	Providers  []provider.ProviderStatus `json:"providers,omitempty"`
	Uptime     string                    `json:"uptime"`
}

// HealthHandler answers GET /health. The service is healthy when a
// provider is available, degraded when only the FAQ can answer, and
// unhealthy (503) when it can answer nothing but the no-match reply.
type HealthHandler struct {
	faq       Counter
	providers ProviderReporter
	disabled  atomic.Bool
	started   time.Time
}

// NewHealthHandler creates a health handler. providers may be nil when
// the upstream is disabled.
func NewHealthHandler(faq Counter, providers ProviderReporter, upstreamDisabled bool) *HealthHandler {
	h := &HealthHandler{
		faq:       faq,
		providers: providers,
		started:   time.Now(),
	}
	h.disabled.Store(upstreamDisabled)
	return h
}

// SetUpstreamDisabled follows a configuration change.
func (h *HealthHandler) SetUpstreamDisabled(disabled bool) {
	h.disabled.Store(disabled)
}

// Report computes the current health.
func (h *HealthHandler) Report() HealthReport {
	report := HealthReport{
		Uptime: time.Since(h.started).Round(time.Second).String(),
	}
	if h.faq != nil {
		report.FAQEntries = h.faq.Len()
	}

	disabled := h.disabled.Load()
	available := false
	switch {
	case disabled:
		report.Upstream = "disabled"
	case h.providers == nil:
		report.Upstream = "unavailable"
	default:
		report.Providers = h.providers.Status()
		available = h.providers.Available()
		if available {
			report.Upstream = "available"
		} else {
			report.Upstream = "unavailable"
		}
	}

	switch {
	case available:
		report.Status = StatusHealthy
	case disabled && report.FAQEntries > 0:
		report.Status = StatusHealthy
	case report.FAQEntries > 0:
		report.Status = StatusDegraded
	default:
		report.Status = StatusUnhealthy
	}
	return report
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Report()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if report.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}
