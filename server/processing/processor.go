// Package processing builds the prompt for a chat message and formats the
// model's reply.
package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/faqchat/config"
)

// ErrPrompt marks failures to render the prompt, as opposed to failures
// of the Generator.
var ErrPrompt = errors.New("prompt rendering failed")

// Generator produces a completion for a prompt. *provider.Manager
// implements it.
type Generator interface {
	Generate(ctx context.Context, prompt *gollm.Prompt) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt *gollm.Prompt) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt *gollm.Prompt) (string, error) {
	return f(ctx, prompt)
}

// Processor turns a question and its FAQ context into a prompt, sends it
// to the Generator and formats the reply according to configuration.
//
// The prompt is made of the system prompt, if any, followed by a single
// user message rendered from the configured template.
type Processor struct {
	gen           Generator                // Where prompts are sent
	template      *template.Template       // Compiled user message template
	config        *config.ProcessingConfig // Configuration for processing behavior
	defaultPrompt string                   // System prompt for all requests
}

// NewProcessor creates a new processor instance with the given configuration and generator.
// The template is compiled here, so an invalid one fails fast.
func NewProcessor(cfg *config.ProcessingConfig, gen Generator) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("processing config is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}

	text := cfg.PromptTemplate
	if text == "" {
		text = config.DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return &Processor{
		gen:      gen,
		template: tmpl,
		config:   cfg,
	}, nil
}

// SetDefaultPrompt sets the system prompt to be used for all requests.
func (p *Processor) SetDefaultPrompt(prompt string) {
	p.defaultPrompt = prompt
}

// BuildPrompt renders the prompt for req without sending it.
func (p *Processor) BuildPrompt(req *Request) (*gollm.Prompt, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request cannot be nil", ErrPrompt)
	}

	var messages []gollm.PromptMessage
	if p.defaultPrompt != "" {
		messages = append(messages, gollm.PromptMessage{
			Role:    "system",
			Content: p.defaultPrompt,
		})
	}

	var buf bytes.Buffer
	if err := p.template.Execute(&buf, req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrompt, err)
	}
	messages = append(messages, gollm.PromptMessage{
		Role:    "user",
		Content: buf.String(),
	})

	return &gollm.Prompt{Messages: messages}, nil
}

// ProcessRequest builds the prompt for req, sends it and formats the
// reply.
func (p *Processor) ProcessRequest(ctx context.Context, req *Request) (*Response, error) {
	prompt, err := p.BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	response, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM processing failed: %w", err)
	}

	return p.formatResponse(response), nil
}

// formatResponse applies configured formatting options to the LLM response:
// 1. Cleans JSON if enabled (removes markdown blocks, formats JSON)
// 2. Trims whitespace if enabled
// 3. Truncates to max length (in characters) if configured
func (p *Processor) formatResponse(content string) *Response {
	if p.config.ResponseFormatting.CleanJSON {
		content = gollm.CleanResponse(content)
	}
	if p.config.ResponseFormatting.TrimWhitespace {
		content = strings.TrimSpace(content)
	}

	resp := &Response{Content: content}
	if max := p.config.ResponseFormatting.MaxLength; max > 0 {
		if runes := []rune(content); len(runes) > max {
			resp.Content = string(runes[:max])
			resp.Truncated = true
		}
	}
	return resp
}
