package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadValidConfig(t *testing.T) {
	yamlConfig := `
server:
  port: 9090
  read_timeout: 45s
  request_timeout: 20s

upstream:
  providers:
    openrouter:
      type: openai
      model: google/gemma-2-9b-it
      api_key: test-key
  provider_preference: [openrouter]
  system_prompt: "You answer questions about listings."

faq:
  path: data/faqs.json
  threshold: 70
  watch: true

chat:
  max_message_length: 500
  max_message_tokens: 128

logging:
  level: debug
  format: text

widget:
  endpoint: http://chat.example.com/chat
  policy: queue

scrape:
  pages:
    - name: about_us
      url: https://example.com/about-us
`

	cfg, err := Load(strings.NewReader(yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 20*time.Second, cfg.Server.RequestTimeout)

	require.Contains(t, cfg.Upstream.Providers, "openrouter")
	assert.Equal(t, "google/gemma-2-9b-it", cfg.Upstream.Providers["openrouter"].Model)
	assert.Equal(t, []string{"openrouter"}, cfg.Upstream.ProviderPreference)
	assert.Equal(t, "You answer questions about listings.", cfg.Upstream.SystemPrompt)

	assert.Equal(t, "data/faqs.json", cfg.FAQ.Path)
	assert.Equal(t, 70, cfg.FAQ.Threshold)
	assert.True(t, cfg.FAQ.Watch)

	assert.Equal(t, 500, cfg.Chat.MaxMessageLength)
	assert.Equal(t, 128, cfg.Chat.MaxMessageTokens)
	// Untouched keys keep their defaults.
	assert.Equal(t, "Please enter a question.", cfg.Chat.EmptyReply)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	assert.Equal(t, "queue", cfg.Widget.Policy)
	require.Len(t, cfg.Scrape.Pages, 1)
	assert.Equal(t, "about_us", cfg.Scrape.Pages[0].Name)
}

func TestLoadEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   string
	}{
		{
			name:   "invalid port",
			config: "server:\n  port: -1\n",
			want:   "invalid port",
		},
		{
			name:   "invalid log level",
			config: "logging:\n  level: invalid\n",
			want:   "invalid log level",
		},
		{
			name:   "invalid log format",
			config: "logging:\n  format: xml\n",
			want:   "invalid log format",
		},
		{
			name:   "unknown preferred provider",
			config: "upstream:\n  provider_preference: [missing]\n",
			want:   "unknown provider",
		},
		{
			name:   "empty route path",
			config: "routes:\n  - path: \"\"\n    handler: chat\n",
			want:   "empty path",
		},
		{
			name:   "bad widget policy",
			config: "widget:\n  policy: newest\n",
			want:   "Policy",
		},
		{
			name:   "threshold out of range",
			config: "faq:\n  threshold: 150\n",
			want:   "Threshold",
		},
		{
			name:   "provider without model",
			config: "upstream:\n  providers:\n    local:\n      type: ollama\n",
			want:   "Model",
		},
		{
			name:   "scrape page without url",
			config: "scrape:\n  pages:\n    - name: about\n",
			want:   "needs a name and a url",
		},
		{
			name:   "malformed yaml",
			config: "server: [",
			want:   "decode config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"openai"}, cfg.Upstream.ProviderPreference)
	assert.Equal(t, 60, cfg.FAQ.Threshold)
	assert.Equal(t, 65, cfg.FAQ.PartialThreshold)
	assert.Equal(t, "No matching FAQ found.", cfg.Chat.NoMatchContext)
	assert.Equal(t, "Error communicating with AI model. Please try again later.", cfg.Chat.ProviderErrorReply)
	assert.Equal(t, "An internal error occurred. Please try again later.", cfg.Chat.InternalErrorReply)
	assert.Equal(t, DefaultPromptTemplate, cfg.Processing.PromptTemplate)
	assert.Equal(t, "race", cfg.Widget.Policy)
	assert.Equal(t, 30*time.Second, cfg.Widget.RequestTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestEnvironmentVariableExpansion(t *testing.T) {
	t.Setenv("FAQCHAT_TEST_KEY", "test-key-123")
	t.Setenv("FAQCHAT_TEST_HOST", "chat.example.com")
	t.Setenv("FAQCHAT_TEST_EMPTY", "")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "${FAQCHAT_TEST_KEY}", want: "test-key-123"},
		{name: "missing", in: "${FAQCHAT_TEST_MISSING}", want: ""},
		{name: "default used", in: "${FAQCHAT_TEST_MISSING:-8080}", want: "8080"},
		{name: "default for empty", in: "${FAQCHAT_TEST_EMPTY:-x}", want: "x"},
		{name: "default ignored", in: "${FAQCHAT_TEST_KEY:-other}", want: "test-key-123"},
		{name: "several", in: "http://${FAQCHAT_TEST_HOST}/chat", want: "http://chat.example.com/chat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := expandEnvVars("${FAQCHAT_TEST_KEY")
	assert.Error(t, err)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("FAQCHAT_TEST_KEY", "sk-test")
	cfg, err := Load(strings.NewReader(`
upstream:
  providers:
    openai:
      type: openai
      model: gpt-4o-mini
      api_key: ${FAQCHAT_TEST_KEY}
server:
  port: ${FAQCHAT_TEST_PORT:-9191}
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Upstream.Providers["openai"].APIKey)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faqchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faqchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o644))

	cw, err := NewConfigWatcher(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer cw.Close()

	assert.Equal(t, 7070, cw.GetCurrentConfig().Server.Port)
	updates := cw.Subscribe()

	// An invalid file is ignored.
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -5\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 7070, cw.GetCurrentConfig().Server.Port)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7171\n"), 0o644))
	require.Eventually(t, func() bool {
		return cw.GetCurrentConfig().Server.Port == 7171
	}, 2*time.Second, 20*time.Millisecond)

	select {
	case cfg := <-updates:
		assert.NotNil(t, cfg)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not notified")
	}
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "faqchat.log")

	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", File: logFile, MaxSizeMB: 1})
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)

	_, err = NewLogger(LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
	_, err = NewLogger(LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)

	textLogger, err := NewLogger(LoggingConfig{Level: "info", Format: "text"})
	require.NoError(t, err)
	assert.NotNil(t, textLogger)
}
