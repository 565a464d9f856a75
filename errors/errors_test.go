package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ChatError
		want string
	}{
		{
			name: "basic error without wrapped error",
			err:  &ChatError{Type: ValidationError, Message: "invalid input"},
			want: "validation_error: invalid input",
		},
		{
			name: "error with wrapped error",
			err: &ChatError{
				Type:    InternalError,
				Message: "processing failed",
				err:     errors.New("template failed"),
			},
			want: "internal_error: processing failed: template failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestChatError_IsAndUnwrap(t *testing.T) {
	inner := errors.New("upstream down")
	err := NewProviderError("req_1", "generation failed", inner)
	wrapped := fmt.Errorf("answering: %w", err)

	assert.True(t, Is(wrapped, &ChatError{Type: ProviderError}))
	assert.False(t, Is(wrapped, &ChatError{Type: ValidationError}))
	assert.ErrorIs(t, wrapped, inner)

	var chatErr *ChatError
	require.True(t, As(wrapped, &chatErr))
	assert.Equal(t, http.StatusBadGateway, chatErr.Code)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, NewLimitError("req_2", "message is too long", map[string]interface{}{
		"max_length": 10,
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, ValidationError, resp.Type)
	assert.Equal(t, "message is too long", resp.Message)
	assert.Equal(t, "req_2", resp.RequestID)
	assert.Equal(t, float64(10), resp.Details["max_length"])
}

func TestErrorWithType_UsesResponseRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req_3")
	ErrorWithType(w, "Invalid request body", ValidationError, http.StatusBadRequest)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "req_3", resp.RequestID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *ChatError
		wantType ErrorType
		wantCode int
	}{
		{"validation", NewValidationError("r", "bad", nil), ValidationError, http.StatusBadRequest},
		{"limit", NewLimitError("r", "too long", nil), ValidationError, http.StatusUnprocessableEntity},
		{"rate limit", NewRateLimitError("r", 60), RateLimitError, http.StatusTooManyRequests},
		{"provider", NewProviderError("r", "down", nil), ProviderError, http.StatusBadGateway},
		{"timeout", NewTimeoutError("r", "5s", nil), TimeoutError, http.StatusGatewayTimeout},
		{"overloaded", NewOverloadedError("r", 1), OverloadedError, http.StatusServiceUnavailable},
		{"internal", NewInternalError("r", nil), InternalError, http.StatusInternalServerError},
		{"generic", NewError(NotFoundError, "nope", http.StatusNotFound, "r", nil, nil), NotFoundError, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, "r", tt.err.RequestID)
		})
	}
}
