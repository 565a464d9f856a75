// Package widget implements the conversation side of the chat widget.
//
// The Controller sequences one exchange: it shows the user's message,
// clears the input, raises the typing indicator, calls the reply endpoint
// through a Sender and finally hands a formatted Bot message (or a single
// error message) to the Shell. The Shell owns everything visible.
package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/eapache/queue/v2"
	"go.uber.org/zap"
)

// Options configures a Controller. The zero value is usable.
type Options struct {
	Policy  Policy
	Timeout time.Duration
	Logger  *zap.Logger
}

// Controller owns the conversation state and drives a Shell.
//
// Submit and ToggleVisibility may be called from any goroutine. State
// transitions and the Shell calls that reflect them are serialized, but no
// lock is held while a request is outstanding.
type Controller struct {
	shell   Shell
	sender  Sender
	policy  Policy
	timeout time.Duration
	logger  *zap.Logger

	// seq serializes transitions together with their Shell calls.
	seq sync.Mutex

	mu      sync.Mutex
	state   State
	pending *queue.Queue[string]
}

// NewController creates a Controller. The panel starts hidden and idle.
func NewController(shell Shell, sender Sender, opts Options) *Controller {
	if opts.Policy == "" {
		opts.Policy = DefaultPolicy
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		shell:   shell,
		sender:  sender,
		policy:  opts.Policy,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		pending: queue.New[string](),
	}
}

// State returns a snapshot of the conversation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Queued = c.pending.Length()
	return s
}

// Policy returns the submission policy in effect.
func (c *Controller) Policy() Policy {
	return c.policy
}

// SubmitInput submits whatever the Shell's input currently holds.
func (c *Controller) SubmitInput(ctx context.Context) {
	c.Submit(ctx, c.shell.InputValue())
}

// Submit runs one exchange for raw and returns once its outcome has been
// handed to the Shell. Blank input is ignored. Under PolicyQueue a
// submission made while a request is in flight returns right after its
// user message is shown; the goroutine that owns the active request issues
// it later.
//
// Submit never panics on transport problems and never returns an error:
// failures surface as a single SystemError message.
func (c *Controller) Submit(ctx context.Context, raw string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}

	c.seq.Lock()
	inFlight := c.State().InFlight
	if inFlight && c.policy == PolicyIgnore {
		c.seq.Unlock()
		c.logger.Debug("submission ignored while a request is in flight")
		return
	}

	c.shell.AppendMessage(userMessage(text))
	c.shell.SetInputValue("")

	if inFlight && c.policy == PolicyQueue {
		c.mu.Lock()
		c.pending.Add(text)
		queued := c.pending.Length()
		c.mu.Unlock()
		c.seq.Unlock()
		c.logger.Debug("submission queued", zap.Int("queued", queued))
		return
	}

	token := c.begin()
	c.shell.ShowTypingIndicator()
	c.seq.Unlock()

	c.run(ctx, token, text)
}

// ToggleVisibility flips the panel visibility. It does not depend on, or
// change, the in-flight state.
func (c *Controller) ToggleVisibility() {
	c.seq.Lock()
	defer c.seq.Unlock()

	c.mu.Lock()
	c.state.Visible = !c.state.Visible
	visible := c.state.Visible
	c.mu.Unlock()

	c.shell.SetVisible(visible)
}

// begin marks a new request in flight and returns its token.
func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Token++
	c.state.InFlight = true
	return c.state.Token
}

// run issues the request for text and then every queued submission, one at
// a time, for as long as this goroutine owns the latest token.
func (c *Controller) run(ctx context.Context, token uint64, text string) {
	for {
		reply, err := c.send(ctx, text)

		c.seq.Lock()
		c.mu.Lock()
		if token != c.state.Token {
			c.mu.Unlock()
			c.seq.Unlock()
			c.logger.Debug("discarding stale reply", zap.Uint64("token", token))
			return
		}
		next, more := "", false
		if c.pending.Length() > 0 {
			next, more = c.pending.Remove(), true
			c.state.Token++
			token = c.state.Token
		} else {
			c.state.InFlight = false
		}
		c.mu.Unlock()

		if !more {
			c.shell.HideTypingIndicator()
		}
		c.shell.AppendMessage(c.outcome(reply, err))
		c.seq.Unlock()

		if !more {
			return
		}
		text = next
	}
}

func (c *Controller) send(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	reply, err := c.sender.Send(ctx, text)
	c.logger.Debug("reply endpoint call finished",
		zap.Duration("duration", time.Since(start)),
		zap.Bool("ok", err == nil),
	)
	return reply, err
}

// outcome converts the result of a call into the message to display.
func (c *Controller) outcome(reply string, err error) Message {
	if err != nil {
		c.logger.Warn("chat request failed", zap.Error(err))
		return errorMessage()
	}
	if reply == "" {
		return botMessage(FallbackReply)
	}
	return botMessage(reply)
}
