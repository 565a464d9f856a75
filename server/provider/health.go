package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/teilomillet/gollm"
	"go.uber.org/zap"
)

// HealthStatus represents the current health state of a provider
type HealthStatus struct {
	Healthy          bool          // Whether the last request succeeded
	LastCheck        time.Time     // When the provider was last used
	ConsecutiveFails int           // Number of consecutive failures
	Latency          time.Duration // Last observed latency
	ErrorCount       int64         // Total number of errors
	RequestCount     int64         // Total number of requests
	LastError        string        // Message of the last failure
}

// ProviderStatus is the view of one provider reported by /health.
type ProviderStatus struct {
	Name                string `json:"name"`
	Breaker             string `json:"breaker"`
	Healthy             bool   `json:"healthy"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Requests            int64  `json:"requests"`
	Errors              int64  `json:"errors"`
	LastError           string `json:"last_error,omitempty"`
}

// GetHealthStatus returns the health status for a provider
func (m *Manager) GetHealthStatus(name string) HealthStatus {
	if val, ok := m.healthStates.Load(name); ok {
		return val.(HealthStatus)
	}
	return HealthStatus{}
}

// UpdateHealthStatus updates the health status for a provider
func (m *Manager) UpdateHealthStatus(name string, status HealthStatus) {
	m.healthStates.Store(name, status)
	if status.Healthy {
		m.healthyProviders.WithLabelValues(name).Set(1)
	} else {
		m.healthyProviders.WithLabelValues(name).Set(0)
	}
}

func (m *Manager) recordResult(name string, latency time.Duration, consecutiveFails int, err error) {
	status := m.GetHealthStatus(name)
	status.LastCheck = time.Now()
	status.Latency = latency
	status.RequestCount++
	status.ConsecutiveFails = consecutiveFails
	if err != nil {
		status.Healthy = false
		status.ErrorCount++
		status.LastError = err.Error()
	} else {
		status.Healthy = true
		status.LastError = ""
	}
	m.UpdateHealthStatus(name, status)
}

// Status lists every configured provider in preference order.
func (m *Manager) Status() []ProviderStatus {
	var out []ProviderStatus
	for _, name := range m.getProviderPreference() {
		gen, breaker := m.getProviderResources(name)
		if gen == nil || breaker == nil {
			continue
		}
		hs := m.GetHealthStatus(name)
		out = append(out, ProviderStatus{
			Name:                name,
			Breaker:             breaker.State().String(),
			Healthy:             hs.Healthy,
			ConsecutiveFailures: hs.ConsecutiveFails,
			Requests:            hs.RequestCount,
			Errors:              hs.ErrorCount,
			LastError:           hs.LastError,
		})
	}
	return out
}

// CheckProviderHealth sends a one-line probe to a provider outside of its
// circuit breaker and records the outcome.
func (m *Manager) CheckProviderHealth(ctx context.Context, name string) (HealthStatus, error) {
	gen, _ := m.getProviderResources(name)
	if gen == nil {
		return HealthStatus{}, fmt.Errorf("unknown provider: %s", name)
	}

	prompt := &gollm.Prompt{
		Messages: []gollm.PromptMessage{
			{Role: "user", Content: "health check"},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := gen.Generate(ctx, prompt)
	latency := time.Since(start)

	fails := m.GetHealthStatus(name).ConsecutiveFails
	if err != nil {
		fails++
		m.logger.Warn("Provider health check failed",
			zap.String("provider", name),
			zap.Error(err),
			zap.Duration("latency", latency),
		)
	} else {
		fails = 0
	}
	m.recordResult(name, latency, fails, err)
	return m.GetHealthStatus(name), err
}
