// Package handlers provides the HTTP handlers of the faqchat reply
// service.
//
// POST /chat always answers a well-formed request with 200 and a body of
// the form {"response": "..."}; failures behind the FAQ lookup, such as an
// unreachable model, surface as a friendly reply text rather than an
// error status. Only malformed requests and requests over a configured
// limit get an error response.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/teilomillet/faqchat/config"
	"github.com/teilomillet/faqchat/errors"
	"github.com/teilomillet/faqchat/faq"
	"github.com/teilomillet/faqchat/server/metrics"
	"github.com/teilomillet/faqchat/server/processing"
	"github.com/teilomillet/faqchat/server/validation"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap"
)

// ChatResponse is the body of every successful /chat reply.
type ChatResponse struct {
	Response string `json:"response"`
}

// FAQ is the part of *faq.Store the handler uses.
type FAQ interface {
	Best(query string) (faq.Match, bool)
	Matches(query string) []faq.Match
}

// Upstream generates replies. *provider.Manager implements it.
type Upstream interface {
	processing.Generator
	Available() bool
}

type chatState struct {
	cfg       *config.Config
	processor *processing.Processor
}

// ChatHandler answers POST /chat.
type ChatHandler struct {
	faq      FAQ
	upstream Upstream
	metrics  *metrics.Metrics
	logger   *zap.Logger
	state    atomic.Pointer[chatState]
}

// NewChatHandler creates a chat handler. upstream may be nil, in which case
// every question is answered from the FAQ alone. m may be nil.
func NewChatHandler(cfg *config.Config, store FAQ, upstream Upstream, m *metrics.Metrics, logger *zap.Logger) (*ChatHandler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ChatHandler{
		faq:      store,
		upstream: upstream,
		metrics:  m,
		logger:   logger,
	}
	if err := h.UpdateConfig(cfg); err != nil {
		return nil, err
	}
	return h, nil
}

// UpdateConfig swaps in a new configuration. Requests already running
// finish with the previous one.
func (h *ChatHandler) UpdateConfig(cfg *config.Config) error {
	var gen processing.Generator = processing.GeneratorFunc(unavailable)
	if h.upstream != nil {
		gen = h.upstream
	}
	proc, err := processing.NewProcessor(&cfg.Processing, gen)
	if err != nil {
		return err
	}
	proc.SetDefaultPrompt(cfg.Upstream.SystemPrompt)
	h.state.Store(&chatState{cfg: cfg, processor: proc})
	return nil
}

var errNoUpstream = stderrors.New("no upstream configured")

func unavailable(context.Context, *gollm.Prompt) (string, error) {
	return "", errNoUpstream
}

// ServeHTTP implements http.Handler. The request body is taken from
// validation.ValidateChat when that middleware ran, and decoded here
// otherwise.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-ID")
	logger := h.logger.With(
		zap.String("request_id", requestID),
		zap.String("remote_addr", r.RemoteAddr),
	)
	state := h.state.Load()

	req, ok := validation.RequestFromContext(r.Context())
	if !ok {
		var body validation.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			errors.WriteError(w, errors.NewValidationError(requestID, "Invalid request format", map[string]interface{}{
				"field": "body",
			}))
			return
		}
		req = &body
	}

	written := false
	reply := func(text, outcome string) {
		written = true
		h.count(outcome)
		h.writeReply(w, text, logger)
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("panic while answering chat message", zap.Any("error", p), zap.Stack("stacktrace"))
			if !written {
				reply(state.cfg.Chat.InternalErrorReply, metrics.OutcomeInternalError)
			}
		}
	}()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		reply(state.cfg.Chat.EmptyReply, metrics.OutcomeEmpty)
		return
	}

	match, found := h.lookup(message, state.cfg)
	logger.Debug("FAQ lookup",
		zap.Bool("found", found),
		zap.Int("score", match.Score),
		zap.String("question", match.Question))

	if state.cfg.Upstream.Disabled || h.upstream == nil || !h.upstream.Available() {
		if found {
			reply(match.Answer, metrics.OutcomeFAQOnly)
		} else {
			reply(state.cfg.Chat.NoMatchReply, metrics.OutcomeNoMatch)
		}
		return
	}

	faqContext := state.cfg.Chat.NoMatchContext
	if found {
		faqContext = match.Answer
	}

	resp, err := state.processor.ProcessRequest(r.Context(), &processing.Request{
		Question: message,
		Context:  faqContext,
	})
	switch {
	case err == nil:
		reply(resp.Content, metrics.OutcomeAnswered)
	case errors.Is(err, processing.ErrPrompt):
		errors.LogError(logger, errors.NewInternalError(requestID, err), requestID)
		reply(state.cfg.Chat.InternalErrorReply, metrics.OutcomeInternalError)
	case r.Context().Err() != nil && errors.Is(err, context.Canceled):
		logger.Debug("client went away before the reply was ready")
	default:
		errors.LogError(logger, errors.NewProviderError(requestID, "generation failed", err), requestID)
		reply(state.cfg.Chat.ProviderErrorReply, metrics.OutcomeProviderError)
	}
}

// lookup finds the FAQ entry used as context for message. With hybrid
// matching on, a miss on whole-question similarity falls back to the best
// partial match.
func (h *ChatHandler) lookup(message string, cfg *config.Config) (faq.Match, bool) {
	if h.faq == nil {
		return faq.Match{}, false
	}

	match, found := h.faq.Best(message)
	if !found && cfg.FAQ.Hybrid {
		if matches := h.faq.Matches(message); len(matches) > 0 {
			match, found = matches[0], true
		}
	}

	if h.metrics != nil {
		if found {
			h.metrics.FAQLookups.WithLabelValues("hit").Inc()
			h.metrics.FAQMatchScore.Observe(float64(match.Score))
		} else {
			h.metrics.FAQLookups.WithLabelValues("miss").Inc()
		}
	}
	return match, found
}

func (h *ChatHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.ChatReplies.WithLabelValues(outcome).Inc()
	}
}

func (h *ChatHandler) writeReply(w http.ResponseWriter, text string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ChatResponse{Response: text}); err != nil {
		logger.Warn("failed to write chat reply", zap.Error(err))
	}
}
