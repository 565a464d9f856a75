package provider

import "errors"

var (
	// ErrNoHealthyProvider indicates that no healthy provider is available
	ErrNoHealthyProvider = errors.New("no healthy provider available")

	// ErrNoProviders indicates that no provider is configured at all
	ErrNoProviders = errors.New("no providers configured")
)
