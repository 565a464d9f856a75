package errors

import (
	"net/http"
)

// NewError creates a ChatError with every field set explicitly. Prefer the
// specialized constructors below.
//
// Example:
//
//	err := NewError(InternalError, "faq store unavailable", 500, "req_123", nil, loadErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *ChatError {
	return &ChatError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError reports a malformed request (400).
//
// Example:
//
//	err := NewValidationError("req_123", "Invalid request body", map[string]interface{}{
//	    "field": "message",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *ChatError {
	return &ChatError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewLimitError reports a well-formed request that exceeds a configured
// limit (422).
func NewLimitError(requestID, message string, details map[string]interface{}) *ChatError {
	return &ChatError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusUnprocessableEntity,
		RequestID: requestID,
		Details:   details,
	}
}

// NewRateLimitError reports a client over its request budget.
//
// Example:
//
//	err := NewRateLimitError("req_123", 30)
func NewRateLimitError(requestID string, retryAfter int) *ChatError {
	return &ChatError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewOverloadedError reports a request rejected because every slot and
// the waiting queue are taken.
func NewOverloadedError(requestID string, retryAfter int) *ChatError {
	return &ChatError{
		Type:      OverloadedError,
		Message:   "Server is busy, please retry shortly",
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewProviderError wraps a failure of the upstream model provider.
func NewProviderError(requestID string, message string, err error) *ChatError {
	return &ChatError{
		Type:      ProviderError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewTimeoutError reports a request that exceeded its deadline.
func NewTimeoutError(requestID string, timeout string, err error) *ChatError {
	return &ChatError{
		Type:      TimeoutError,
		Message:   "Request timeout",
		Code:      http.StatusGatewayTimeout,
		RequestID: requestID,
		Details: map[string]interface{}{
			"timeout": timeout,
		},
		err: err,
	}
}

// NewInternalError wraps an unexpected failure. The wrapped error is
// logged but never sent to the client.
//
// Example:
//
//	err := NewInternalError("req_123", templateErr)
func NewInternalError(requestID string, err error) *ChatError {
	return &ChatError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
