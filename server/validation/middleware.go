// Package validation checks POST /chat bodies before they reach the chat
// handler.
package validation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/faqchat/config"
	"github.com/teilomillet/faqchat/errors"
	"go.uber.org/zap"
)

type contextKey struct{}

// Limits bounds the size of a chat message. Zero disables a limit.
type Limits struct {
	MaxLength     int    // in characters
	MaxTokens     int    // in tiktoken tokens
	TokenEncoding string // tiktoken encoding used for MaxTokens
	MaxBodyBytes  int64  // size of the request body
}

// LimitsFromConfig extracts the limits from the chat and server sections.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		MaxLength:     cfg.Chat.MaxMessageLength,
		MaxTokens:     cfg.Chat.MaxMessageTokens,
		TokenEncoding: cfg.Chat.TokenEncoding,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	}
}

// Validator checks chat requests against the current limits. Limits can
// be replaced at any time with SetLimits.
type Validator struct {
	limits   atomic.Pointer[Limits]
	validate *validator.Validate
	logger   *zap.Logger

	mu       sync.Mutex
	counters map[string]*TokenCounter
}

// NewValidator creates a validator with the given limits.
func NewValidator(limits Limits, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Validator{
		validate: validator.New(),
		logger:   logger,
		counters: make(map[string]*TokenCounter),
	}
	v.SetLimits(limits)
	return v
}

// SetLimits replaces the limits.
func (v *Validator) SetLimits(limits Limits) {
	v.limits.Store(&limits)
}

// SetTokenCounter installs the counter used for an encoding, replacing the
// tiktoken one.
func (v *Validator) SetTokenCounter(encoding string, tc *TokenCounter) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.counters[encoding] = tc
}

// tokenCounter returns the counter for encoding, creating it on first use.
func (v *Validator) tokenCounter(encoding string) (*TokenCounter, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if tc, ok := v.counters[encoding]; ok {
		return tc, nil
	}
	tc, err := NewTokenCounter(encoding)
	if err != nil {
		return nil, err
	}
	v.counters[encoding] = tc
	return tc, nil
}

// Check validates a message against the limits. An empty message is
// valid; answering it is the handler's business.
func (v *Validator) Check(message string) []ValidationErrorDetail {
	limits := v.limits.Load()
	var details []ValidationErrorDetail

	if limits.MaxLength > 0 {
		// validator counts characters, not bytes, for max on strings.
		if err := v.validate.Var(message, "max="+strconv.Itoa(limits.MaxLength)); err != nil {
			details = append(details, ValidationErrorDetail{
				Field:   "message",
				Message: fmt.Sprintf("message must be at most %d characters", limits.MaxLength),
				Code:    "max_length_exceeded",
				Value:   strconv.Itoa(limits.MaxLength),
			})
		}
	}

	if limits.MaxTokens > 0 && len(details) == 0 {
		tc, err := v.tokenCounter(limits.TokenEncoding)
		if err != nil {
			// Without a tokenizer the length limit still applies.
			v.logger.Warn("token counting unavailable", zap.Error(err))
		} else if err := tc.ValidateTokens(message, limits.MaxTokens); err != nil {
			details = append(details, ValidationErrorDetail{
				Field:   "message",
				Message: "token limit exceeded",
				Code:    "token_limit_exceeded",
				Value:   strconv.Itoa(limits.MaxTokens),
			})
		}
	}

	return details
}

// RequestFromContext returns the request stored by ValidateChat.
func RequestFromContext(ctx context.Context) (*ChatRequest, bool) {
	req, ok := ctx.Value(contextKey{}).(*ChatRequest)
	return req, ok
}

// WithRequest stores req in ctx the way ValidateChat does.
func WithRequest(ctx context.Context, req *ChatRequest) context.Context {
	return context.WithValue(ctx, contextKey{}, req)
}

// ValidateChat decodes the body of a chat request and checks it. A body
// that is not a JSON object with a string message is rejected with 400,
// a message over a limit with 422. The decoded request is available to
// next through RequestFromContext.
func (v *Validator) ValidateChat(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := w.Header().Get("X-Request-ID")

		sendError := func(err *errors.ChatError, details []ValidationErrorDetail) {
			if len(details) > 0 {
				err.Details = map[string]interface{}{"fields": details}
			}
			errors.WriteError(w, err)
		}

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			sendError(errors.NewValidationError(requestID, "Invalid or missing Content-Type header", nil),
				[]ValidationErrorDetail{{
					Field:   "header:Content-Type",
					Message: "Content-Type must be application/json",
					Code:    "invalid_content_type",
					Value:   r.Header.Get("Content-Type"),
				}})
			return
		}

		body := io.Reader(r.Body)
		if max := v.limits.Load().MaxBodyBytes; max > 0 {
			body = http.MaxBytesReader(w, r.Body, max)
		}

		var req ChatRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			code := "invalid_json"
			var maxErr *http.MaxBytesError
			if stderrors.As(err, &maxErr) {
				code = "body_too_large"
			}
			sendError(errors.NewValidationError(requestID, "Invalid request format", nil),
				[]ValidationErrorDetail{{
					Field:   "body",
					Message: err.Error(),
					Code:    code,
				}})
			return
		}

		if details := v.Check(strings.TrimSpace(req.Message)); len(details) > 0 {
			sendError(errors.NewLimitError(requestID, "Request validation failed", nil), details)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithRequest(r.Context(), &req)))
	})
}
