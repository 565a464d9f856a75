package validation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ValidationErrorDetail describes one rejected field.
type ValidationErrorDetail struct {
	Field   string `json:"field"`           // The field that failed validation
	Message string `json:"message"`         // Human-readable error message
	Code    string `json:"code"`            // Machine-readable error code
	Value   string `json:"value,omitempty"` // The invalid value (if safe to return)
}

// Tokenizer defines the interface for token counting
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
	CountTokens(text string) int
}

// tiktokenWrapper wraps tiktoken to implement our Tokenizer interface
type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	tokens := t.Encode(text, nil, nil)
	return len(tokens)
}

// TokenCounter handles token counting for messages using tiktoken
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a token counter for a tiktoken encoding name
// such as "cl100k_base". The encoding's ranks are fetched and cached by
// tiktoken on first use.
func NewTokenCounter(encoding string) (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", encoding, err)
	}
	return &TokenCounter{encoding: &tiktokenWrapper{enc}}, nil
}

// NewTokenCounterWithTokenizer creates a token counter around any Tokenizer.
func NewTokenCounterWithTokenizer(t Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: t}
}

// CountTokens counts the tokens of a message
func (tc *TokenCounter) CountTokens(message string) int {
	return tc.encoding.CountTokens(message)
}

// ValidateTokens checks that message fits in maxTokens. A limit of zero or
// less disables the check.
func (tc *TokenCounter) ValidateTokens(message string, maxTokens int) error {
	if maxTokens <= 0 {
		return nil
	}
	if n := tc.CountTokens(message); n > maxTokens {
		return fmt.Errorf("message has %d tokens, limit is %d", n, maxTokens)
	}
	return nil
}
