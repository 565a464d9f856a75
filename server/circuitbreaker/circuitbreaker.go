// Package circuitbreaker guards calls to a model provider. It wraps
// sony/gobreaker and exports the breaker state to Prometheus.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for the circuit breaker
type Config struct {
	Name             string        // Name used in logs and metric labels
	MaxRequests      uint32        // Requests allowed through while half-open
	Interval         time.Duration // Cyclic period of the closed state for clearing counts
	Timeout          time.Duration // Time spent open before trying half-open
	FailureThreshold uint32        // Consecutive failures that trip the breaker
	TestMode         bool          // Skip metric registration in test mode
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	// Metrics
	stateGauge    prometheus.Gauge
	failuresCount prometheus.Counter
	tripsTotal    prometheus.Counter
}

// NewCircuitBreaker creates a new circuit breaker. Metrics are registered
// on registry unless TestMode is set or registry is nil; a breaker created
// again under the same name reuses the already registered collectors.
func NewCircuitBreaker(config Config, logger *zap.Logger, registry prometheus.Registerer) (*CircuitBreaker, error) {
	if config.Name == "" {
		return nil, errors.New("circuit breaker needs a name")
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := &CircuitBreaker{
		name:   config.Name,
		logger: logger,
	}

	labels := prometheus.Labels{"name": config.Name}
	cb.stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "faqchat_circuit_breaker_state",
		Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		ConstLabels: labels,
	})
	cb.failuresCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "faqchat_circuit_breaker_failures_total",
		Help:        "Total number of failures recorded by the circuit breaker",
		ConstLabels: labels,
	})
	cb.tripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "faqchat_circuit_breaker_trips_total",
		Help:        "Total number of times the circuit breaker has tripped",
		ConstLabels: labels,
	})

	if !config.TestMode && registry != nil {
		var err error
		if cb.stateGauge, err = register(registry, cb.stateGauge); err != nil {
			return nil, err
		}
		if cb.failuresCount, err = register(registry, cb.failuresCount); err != nil {
			return nil, err
		}
		if cb.tripsTotal, err = register(registry, cb.tripsTotal); err != nil {
			return nil, err
		}
	}

	threshold := config.FailureThreshold
	cb.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cb.onStateChange,
		// A caller that gives up says nothing about the provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	cb.stateGauge.Set(float64(gobreaker.StateClosed))

	return cb, nil
}

// register registers c, returning the existing collector when an equal
// one is already registered.
func register[T prometheus.Collector](registry prometheus.Registerer, c T) (T, error) {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (cb *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	cb.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		cb.tripsTotal.Inc()
		cb.logger.Warn("Circuit breaker tripped",
			zap.String("name", name),
			zap.String("from", from.String()),
		)
		return
	}
	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Execute runs f if the circuit breaker allows it. A rejected call returns
// ErrCircuitOpen or ErrTooManyRequests without running f.
func (cb *CircuitBreaker) Execute(f func() error) error {
	_, err := cb.cb.Execute(func() (interface{}, error) {
		return nil, f()
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return ErrCircuitOpen
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrTooManyRequests
	case err != nil && !errors.Is(err, context.Canceled):
		cb.failuresCount.Inc()
	}
	return err
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}

// Counts returns the request counts of the current generation.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.cb.Counts()
}
