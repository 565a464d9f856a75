package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teilomillet/faqchat/server/circuitbreaker"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap"
)

// Generate sends prompt to the first preferred provider whose breaker
// lets it through. A provider that fails hands over to the next one.
// Identical prompts in flight at the same time share one upstream call.
//
// The error is ErrNoProviders when nothing is configured,
// ErrNoHealthyProvider when every breaker rejected the call, and
// otherwise the last provider error.
func (m *Manager) Generate(ctx context.Context, prompt *gollm.Prompt) (string, error) {
	if prompt == nil || len(prompt.Messages) == 0 {
		return "", fmt.Errorf("prompt has no messages")
	}

	key := requestKey(prompt)
	m.logger.Debug("Starting generate", zap.Int("key_len", len(key)))

	ch := m.group.DoChan(key, func() (interface{}, error) {
		return m.executeWithFailover(ctx, prompt)
	})

	select {
	case res := <-ch:
		if res.Shared {
			m.deduplicatedRequests.Inc()
		}
		if res.Err != nil {
			m.logger.Debug("Generate failed", zap.Error(res.Err))
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) executeWithFailover(ctx context.Context, prompt *gollm.Prompt) (string, error) {
	preference := m.getProviderPreference()

	configured := 0
	var lastErr error
	for _, name := range preference {
		gen, breaker := m.getProviderResources(name)
		if gen == nil || breaker == nil {
			continue
		}
		configured++

		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := m.executeOperation(ctx, name, gen, breaker, prompt)
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			m.logger.Debug("Provider skipped by circuit breaker",
				zap.String("provider", name),
				zap.String("breaker_state", breaker.State().String()))
			continue
		}

		lastErr = fmt.Errorf("provider %s: %w", name, err)
		if ctx.Err() != nil {
			return "", lastErr
		}
		m.logger.Warn("Provider failed, trying next",
			zap.String("provider", name),
			zap.Error(err))
	}

	switch {
	case configured == 0:
		return "", ErrNoProviders
	case lastErr == nil:
		return "", ErrNoHealthyProvider
	default:
		return "", lastErr
	}
}

// executeOperation runs one attempt against a single provider.
func (m *Manager) executeOperation(
	ctx context.Context,
	name string,
	gen Generator,
	breaker *circuitbreaker.CircuitBreaker,
	prompt *gollm.Prompt) (string, error) {

	if timeout := m.cfg.Upstream.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	var resp string
	err := breaker.Execute(func() error {
		var err error
		resp, err = gen.Generate(ctx, prompt)
		return err
	})
	duration := time.Since(start)

	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		m.requestsTotal.WithLabelValues(name, "rejected").Inc()
		return "", err
	case err != nil:
		m.requestsTotal.WithLabelValues(name, "error").Inc()
	default:
		m.requestsTotal.WithLabelValues(name, "success").Inc()
	}
	m.requestLatency.WithLabelValues(name).Observe(duration.Seconds())

	counts := breaker.Counts()
	m.recordResult(name, duration, int(counts.ConsecutiveFailures), err)

	if err != nil {
		m.logger.Debug("operation failed",
			zap.String("provider", name),
			zap.Error(err),
			zap.Duration("duration", duration),
			zap.String("breaker_state", breaker.State().String()),
			zap.Uint32("consecutive_failures", counts.ConsecutiveFailures))
		return "", err
	}
	return resp, nil
}

// requestKey identifies a prompt by every message it carries.
func requestKey(prompt *gollm.Prompt) string {
	var b strings.Builder
	for _, msg := range prompt.Messages {
		b.WriteString(msg.Role)
		b.WriteByte(0)
		b.WriteString(msg.Content)
		b.WriteByte(0)
	}
	return b.String()
}

// getProviderPreference safely retrieves the current provider preference list
func (m *Manager) getProviderPreference() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	preference := make([]string, len(m.preference))
	copy(preference, m.preference)
	return preference
}

// getProviderResources safely retrieves provider-related resources
func (m *Manager) getProviderResources(name string) (Generator, *circuitbreaker.CircuitBreaker) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[name], m.breakers[name]
}
