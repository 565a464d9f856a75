// Package provider manages the model providers that write chat replies.
//
// A Manager holds one Generator per configured provider, each behind its
// own circuit breaker. Generate tries providers in preference order,
// skipping those whose breaker is open, and collapses identical
// concurrent prompts into a single upstream call.
package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/teilomillet/faqchat/config"
	"github.com/teilomillet/faqchat/server/circuitbreaker"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Generator is the part of gollm.LLM the manager needs.
type Generator interface {
	Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error)
}

// Manager handles LLM provider management, including:
// - Failover in preference order
// - One circuit breaker per provider
// - Deduplication of identical concurrent prompts
type Manager struct {
	providers    map[string]Generator
	breakers     map[string]*circuitbreaker.CircuitBreaker
	preference   []string
	healthStates sync.Map // map[string]HealthStatus
	group        singleflight.Group
	logger       *zap.Logger
	cfg          *config.Config
	registry     prometheus.Registerer
	mu           sync.RWMutex

	// Metrics
	requestsTotal        *prometheus.CounterVec
	requestLatency       *prometheus.HistogramVec
	deduplicatedRequests prometheus.Counter
	healthyProviders     *prometheus.GaugeVec
}

// NewManager creates a provider manager. Providers are built with gollm
// in preference order; one that cannot be built is logged and left out.
// In test mode, or when the upstream is disabled, no provider is built
// and SetProviders can install fakes.
func NewManager(cfg *config.Config, logger *zap.Logger, registry prometheus.Registerer) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		providers:  make(map[string]Generator),
		breakers:   make(map[string]*circuitbreaker.CircuitBreaker),
		preference: append([]string(nil), cfg.Upstream.ProviderPreference...),
		logger:     logger,
		cfg:        cfg,
		registry:   registry,
	}

	if err := m.initializeMetrics(registry); err != nil {
		return nil, err
	}

	if cfg.TestMode || cfg.Upstream.Disabled {
		return m, nil
	}

	providers := make(map[string]Generator)
	for _, name := range m.preference {
		providerCfg, ok := cfg.Upstream.Providers[name]
		if !ok {
			continue
		}
		gen, err := newLLM(providerCfg)
		if err != nil {
			logger.Warn("Failed to initialize provider",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}
		providers[name] = gen
	}

	if err := m.SetProviders(providers); err != nil {
		return nil, err
	}
	return m, nil
}

// newLLM builds a gollm client. An empty API key falls back to the
// <TYPE>_API_KEY environment variable, e.g. OPENAI_API_KEY.
func newLLM(cfg config.ProviderConfig) (gollm.LLM, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(strings.ToUpper(cfg.Type) + "_API_KEY")
	}
	return gollm.NewLLM(
		gollm.SetProvider(cfg.Type),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(apiKey),
	)
}

// SetProviders replaces the current providers and gives each one a fresh
// circuit breaker. Names not in the preference list are never used.
func (m *Manager) SetProviders(providers map[string]Generator) error {
	breakers := make(map[string]*circuitbreaker.CircuitBreaker, len(providers))
	for name := range providers {
		cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			Name:             name,
			MaxRequests:      m.cfg.CircuitBreaker.MaxRequests,
			Interval:         m.cfg.CircuitBreaker.Interval,
			Timeout:          m.cfg.CircuitBreaker.Timeout,
			FailureThreshold: m.cfg.CircuitBreaker.FailureThreshold,
			TestMode:         m.cfg.CircuitBreaker.TestMode,
		}, m.logger.With(zap.String("provider", name)), m.registry)
		if err != nil {
			return fmt.Errorf("failed to create circuit breaker for %s: %w", name, err)
		}
		breakers[name] = cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = providers
	m.breakers = breakers
	m.healthStates.Range(func(key, _ interface{}) bool {
		m.healthStates.Delete(key)
		return true
	})
	for name := range providers {
		m.healthStates.Store(name, HealthStatus{Healthy: true, LastCheck: time.Now()})
		m.healthyProviders.WithLabelValues(name).Set(1)
	}
	return nil
}

// Available reports whether at least one preferred provider is configured.
func (m *Manager) Available() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.preference {
		if _, ok := m.providers[name]; ok {
			return true
		}
	}
	return false
}
