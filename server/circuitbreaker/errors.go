package circuitbreaker

import "errors"

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when a half-open breaker already has
	// its trial requests in flight
	ErrTooManyRequests = errors.New("circuit breaker is half-open and busy")
)
