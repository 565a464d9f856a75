// Package config provides configuration management for faqchat. One YAML
// file configures the reply service, the FAQ store, the scraper and the
// terminal widget.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/faqchat/faq"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Upstream       UpstreamConfig       `yaml:"upstream"`
	Processing     ProcessingConfig     `yaml:"processing"`
	FAQ            FAQConfig            `yaml:"faq"`
	Chat           ChatConfig           `yaml:"chat"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Queue          QueueConfig          `yaml:"queue"`
	Logging        LoggingConfig        `yaml:"logging"`
	Routes         []RouteConfig        `yaml:"routes" validate:"dive"`
	Widget         WidgetConfig         `yaml:"widget"`
	Scrape         ScrapeConfig         `yaml:"scrape"`
	TestMode       bool                 `yaml:"-"` // Skip provider initialization in tests
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	// (default: 45s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds the handling of a single request (default: 40s)
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxBodyBytes limits the size of a /chat request body (default: 64KB)
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gte=0"`

	// CORSOrigin is sent as Access-Control-Allow-Origin (default: "*")
	CORSOrigin string `yaml:"cors_origin"`
}

// UpstreamConfig configures the model providers that write the replies.
type UpstreamConfig struct {
	// Disabled answers straight from the FAQ without calling a model.
	Disabled bool `yaml:"disabled"`

	// Providers maps a provider name to its settings.
	Providers map[string]ProviderConfig `yaml:"providers" validate:"dive"`

	// ProviderPreference is the order in which providers are tried.
	ProviderPreference []string `yaml:"provider_preference"`

	// SystemPrompt is sent as the system message of every request.
	SystemPrompt string `yaml:"system_prompt"`

	// Timeout bounds a single generation (default: 30s)
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// ProviderConfig holds configuration for an LLM provider
type ProviderConfig struct {
	Type   string `yaml:"type" validate:"required"`  // Provider type (e.g., openai, anthropic)
	Model  string `yaml:"model" validate:"required"` // Model name
	APIKey string `yaml:"api_key"`                   // API key; falls back to <TYPE>_API_KEY
}

// FAQConfig configures the FAQ store.
type FAQConfig struct {
	// Path of the faqs.json file (default: faqs.json)
	Path string `yaml:"path"`

	// Threshold is the similarity a question must exceed to be used as
	// context (default: 60)
	Threshold int `yaml:"threshold" validate:"gte=0,lte=100"`

	// PartialThreshold is used when Hybrid is on (default: 65)
	PartialThreshold int `yaml:"partial_threshold" validate:"gte=0,lte=100"`

	// Hybrid falls back to partial matching when no question is similar
	// enough as a whole.
	Hybrid bool `yaml:"hybrid"`

	// Watch reloads the file when it changes.
	Watch bool `yaml:"watch"`
}

// ChatConfig holds the limits and canned replies of the /chat endpoint.
type ChatConfig struct {
	// MaxMessageLength limits a message in characters; 0 disables the check.
	MaxMessageLength int `yaml:"max_message_length" validate:"gte=0"`

	// MaxMessageTokens limits a message in tokens; 0 disables the check.
	MaxMessageTokens int `yaml:"max_message_tokens" validate:"gte=0"`

	// TokenEncoding is the tiktoken encoding used for MaxMessageTokens.
	TokenEncoding string `yaml:"token_encoding"`

	EmptyReply         string `yaml:"empty_reply"`
	NoMatchContext     string `yaml:"no_match_context"`
	NoMatchReply       string `yaml:"no_match_reply"`
	ProviderErrorReply string `yaml:"provider_error_reply"`
	InternalErrorReply string `yaml:"internal_error_reply"`
}

// CircuitBreakerConfig configures the breaker kept for each provider.
type CircuitBreakerConfig struct {
	// MaxRequests is maximum number of requests allowed to pass through when in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for the circuit breaker
	Interval time.Duration `yaml:"interval"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures needed to trip the circuit
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// TestMode indicates whether to skip Prometheus metric registration (for testing)
	TestMode bool `yaml:"test_mode"`
}

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Requests allowed per Window for a single client IP (default: 30)
	Requests int `yaml:"requests" validate:"gte=0"`

	// Window over which Requests are counted (default: 1m)
	Window time.Duration `yaml:"window" validate:"gte=0"`
}

// QueueConfig bounds how many /chat requests are answered at once.
type QueueConfig struct {
	// MaxConcurrent requests are handled at the same time (default: 8)
	MaxConcurrent int `yaml:"max_concurrent" validate:"gte=0"`

	// MaxQueued requests may wait for a slot; more are rejected with 503
	// (default: 64)
	MaxQueued int `yaml:"max_queued" validate:"gte=0"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`

	// File, when set, sends logs to a rotated file instead of stderr.
	File string `yaml:"file"`

	// MaxSizeMB is the size at which File is rotated (default: 10)
	MaxSizeMB int `yaml:"max_size_mb" validate:"gte=0"`

	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `yaml:"max_backups" validate:"gte=0"`

	// MaxAgeDays is how long rotated files are kept (default: 28)
	MaxAgeDays int `yaml:"max_age_days" validate:"gte=0"`

	// Compress gzips rotated files.
	Compress bool `yaml:"compress"`
}

// RouteConfig holds route-specific configuration.
type RouteConfig struct {
	// Path is the URL path to match
	Path string `yaml:"path"`

	// Handler specifies which handler to use for this route
	Handler string `yaml:"handler"`

	// Version is an optional path prefix (e.g., "v1")
	Version string `yaml:"version"`

	// Methods specifies the allowed HTTP methods for this route
	Methods []string `yaml:"methods"`

	// Middleware specifies route-specific middleware
	Middleware []string `yaml:"middleware,omitempty"`
}

// WidgetConfig configures the terminal chat widget.
type WidgetConfig struct {
	// Endpoint the widget posts messages to
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	// RequestTimeout bounds a single exchange (default: 30s)
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`

	// Policy for submissions made while a reply is pending:
	// race (default), ignore or queue
	Policy string `yaml:"policy" validate:"omitempty,oneof=race ignore queue"`
}

// ScrapeConfig lists the pages turned into FAQ entries by `faqchat scrape`.
type ScrapeConfig struct {
	Pages   []faq.Page    `yaml:"pages"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// DefaultConfig returns the configuration used for every key a file
// leaves out.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    45 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  40 * time.Second,
			MaxBodyBytes:    64 << 10,
			CORSOrigin:      "*",
		},

		Upstream: UpstreamConfig{
			Providers: map[string]ProviderConfig{
				"openai": {
					Type:  "openai",
					Model: "gpt-4o-mini",
				},
			},
			ProviderPreference: []string{"openai"},
			SystemPrompt:       "You are a helpful AI assistant for a real estate platform. Use FAQ info if available.",
			Timeout:            30 * time.Second,
		},

		Processing: ProcessingConfig{
			PromptTemplate: DefaultPromptTemplate,
			ResponseFormatting: ResponseFormattingConfig{
				TrimWhitespace: true,
			},
		},

		FAQ: FAQConfig{
			Path:             "faqs.json",
			Threshold:        faq.DefaultThreshold,
			PartialThreshold: faq.DefaultPartialThreshold,
		},

		Chat: ChatConfig{
			MaxMessageLength:   2000,
			TokenEncoding:      "cl100k_base",
			EmptyReply:         "Please enter a question.",
			NoMatchContext:     "No matching FAQ found.",
			NoMatchReply:       "Sorry, I couldn't find an answer to that. Please try rephrasing your question.",
			ProviderErrorReply: "Error communicating with AI model. Please try again later.",
			InternalErrorReply: "An internal error occurred. Please try again later.",
		},

		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},

		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 30,
			Window:   time.Minute,
		},

		Queue: QueueConfig{
			MaxConcurrent: 8,
			MaxQueued:     64,
		},

		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},

		Routes: []RouteConfig{
			{
				Path:       "/chat",
				Handler:    "chat",
				Methods:    []string{"POST", "OPTIONS"},
				Middleware: []string{"ratelimit", "queue"},
			},
			{
				Path:    "/metrics",
				Handler: "metrics",
				Methods: []string{"GET"},
			},
		},

		Widget: WidgetConfig{
			Endpoint:       "http://localhost:8080/chat",
			RequestTimeout: 30 * time.Second,
			Policy:         "race",
		},

		Scrape: ScrapeConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references. A default
// applies when the variable is unset or empty. Values that themselves
// contain references are expanded again until nothing changes.
//
// Example transformations:
//   - "${DB_HOST}" → "localhost"
//   - "${PORT:-8080}" → "8080" (if PORT is unset)
//   - "${HOST}/${PATH}" → "api.example.com/v1"
func expandEnvVars(s string) (string, error) {
	if open := strings.Count(s, "${"); open > strings.Count(s, "}") {
		return "", fmt.Errorf("invalid syntax: unterminated variable reference")
	}

	expand := func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	}

	result := os.Expand(s, expand)
	for prev := ""; prev != result && strings.Contains(result, "${"); {
		prev = result
		result = os.Expand(result, expand)
	}
	return result, nil
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	// Start with defaults
	config := DefaultConfig()

	// An empty document keeps the defaults.
	if strings.TrimSpace(expandedData) != "" {
		dec := yaml.NewDecoder(strings.NewReader(expandedData))
		if err := dec.Decode(config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

var structValidator = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("negative request timeout: %v", c.Server.RequestTimeout)
	}

	// Upstream validation
	if !c.Upstream.Disabled {
		for _, name := range c.Upstream.ProviderPreference {
			if _, ok := c.Upstream.Providers[name]; !ok {
				return fmt.Errorf("unknown provider in preference list: %s", name)
			}
		}
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Route validation
	for i, route := range c.Routes {
		if route.Path == "" {
			return fmt.Errorf("empty path in route %d", i)
		}
		if route.Handler == "" {
			return fmt.Errorf("empty handler in route %d", i)
		}
	}

	// Scrape validation
	for i, page := range c.Scrape.Pages {
		if page.Name == "" || page.URL == "" {
			return fmt.Errorf("scrape page %d needs a name and a url", i)
		}
	}

	if c.Processing.PromptTemplate == "" {
		return fmt.Errorf("empty prompt template")
	}

	// Field constraints declared as struct tags
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid field: %w", err)
	}

	return nil
}
