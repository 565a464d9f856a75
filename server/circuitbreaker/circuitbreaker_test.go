package circuitbreaker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCircuitBreaker(t *testing.T) {
	logger := zaptest.NewLogger(t)

	newCB := func(t *testing.T) *CircuitBreaker {
		cb, err := NewCircuitBreaker(Config{
			Name:             "test",
			MaxRequests:      1,
			Interval:         time.Second,
			Timeout:          100 * time.Millisecond,
			FailureThreshold: 2,
			TestMode:         true,
		}, logger, nil)
		require.NoError(t, err)
		return cb
	}

	trip := func(t *testing.T, cb *CircuitBreaker) {
		for i := 0; i < 2; i++ {
			assert.Error(t, cb.Execute(func() error { return errors.New("failure") }))
		}
		require.Equal(t, gobreaker.StateOpen, cb.State())
	}

	t.Run("Initially Closed", func(t *testing.T) {
		cb := newCB(t)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
		assert.Equal(t, "test", cb.Name())
	})

	t.Run("Opens After Failures", func(t *testing.T) {
		cb := newCB(t)

		err := cb.Execute(func() error { return errors.New("error 1") })
		assert.EqualError(t, err, "error 1")
		assert.Equal(t, gobreaker.StateClosed, cb.State())

		err = cb.Execute(func() error { return errors.New("error 2") })
		assert.EqualError(t, err, "error 2")
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		called := false
		err = cb.Execute(func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.False(t, called)
	})

	t.Run("Transitions to Half-Open", func(t *testing.T) {
		cb := newCB(t)
		trip(t, cb)

		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

		err := cb.Execute(func() error { return errors.New("failure in half-open") })
		assert.Error(t, err)
		assert.Equal(t, gobreaker.StateOpen, cb.State())
	})

	t.Run("Closes After Success", func(t *testing.T) {
		cb := newCB(t)
		trip(t, cb)

		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

		assert.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Half-Open Admits One Trial", func(t *testing.T) {
		cb := newCB(t)
		trip(t, cb)
		time.Sleep(150 * time.Millisecond)

		release := make(chan struct{})
		started := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- cb.Execute(func() error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started

		err := cb.Execute(func() error { return nil })
		assert.ErrorIs(t, err, ErrTooManyRequests)

		close(release)
		assert.NoError(t, <-done)
	})

	t.Run("Canceled Calls Do Not Trip", func(t *testing.T) {
		cb := newCB(t)
		for i := 0; i < 3; i++ {
			err := cb.Execute(func() error { return context.Canceled })
			assert.ErrorIs(t, err, context.Canceled)
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Maintains Failure Count", func(t *testing.T) {
		cb := newCB(t)
		for i := 0; i < 3; i++ {
			_ = cb.Execute(func() error {
				if i%2 == 0 {
					return nil
				}
				return errors.New("failure")
			})
		}

		counts := cb.Counts()
		assert.Equal(t, uint32(3), counts.Requests)
		assert.Equal(t, uint32(1), counts.TotalFailures)
		assert.Equal(t, uint32(2), counts.TotalSuccesses)
	})
}

func TestCircuitBreakerRequiresName(t *testing.T) {
	_, err := NewCircuitBreaker(Config{}, nil, nil)
	assert.Error(t, err)
}

func TestCircuitBreakerMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	cfg := Config{
		Name:             "openai",
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}

	cb, err := NewCircuitBreaker(cfg, zaptest.NewLogger(t), registry)
	require.NoError(t, err)

	_ = cb.Execute(func() error { return errors.New("boom") })
	require.Equal(t, gobreaker.StateOpen, cb.State())

	expected := `
# HELP faqchat_circuit_breaker_state Current state of the circuit breaker (0=closed, 1=half-open, 2=open)
# TYPE faqchat_circuit_breaker_state gauge
faqchat_circuit_breaker_state{name="openai"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "faqchat_circuit_breaker_state"))
	assert.Equal(t, 1.0, testutil.ToFloat64(cb.tripsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(cb.failuresCount))

	// Rebuilding a breaker with the same name reuses its collectors.
	again, err := NewCircuitBreaker(cfg, zaptest.NewLogger(t), registry)
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, again.State())
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(strings.Replace(expected, "} 2", "} 0", 1)), "faqchat_circuit_breaker_state"))
}
