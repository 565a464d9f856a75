package config

// DefaultPromptTemplate renders the user message sent to the model.
const DefaultPromptTemplate = "User asked: {{.Question}}\nFAQ answer: {{.Context}}"

// ProcessingConfig defines how prompts are built and replies post-processed.
type ProcessingConfig struct {
	// PromptTemplate is a text/template rendered with .Question and .Context
	PromptTemplate string `yaml:"prompt_template"`

	// ResponseFormatting configures how responses should be formatted
	ResponseFormatting ResponseFormattingConfig `yaml:"response_formatting"`
}

// ResponseFormattingConfig defines response formatting options
type ResponseFormattingConfig struct {
	// CleanJSON enables JSON response cleaning using gollm
	CleanJSON bool `yaml:"clean_json"`

	// TrimWhitespace removes extra whitespace from responses
	TrimWhitespace bool `yaml:"trim_whitespace"`

	// MaxLength limits the response length in characters
	MaxLength int `yaml:"max_length" validate:"gte=0"`
}
