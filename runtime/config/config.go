// Package config loads the streaming core configuration from YAML, validates it
// against an embedded JSON schema and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
)

// Defaults mirrored from the desktop application.
const (
	DefaultBackendURL      = "http://127.0.0.1:8000"
	DefaultProvider        = providers.ProviderClaude
	DefaultClaudeModel     = "claude-sonnet-4-20250514"
	DefaultGeminiModel     = "gemini-2.5-flash"
	DefaultMaxOutputTokens = 8192
	DefaultTemperature     = 0.7
	DefaultHistoryLimit    = 20
	DefaultHistoryTTL      = 7 * 24 * time.Hour
	DefaultHistoryPrefix   = "regis"
	DefaultConversationID  = "default"
	DefaultTotalTimeout    = 90 * time.Second
	DefaultStallTimeout    = 30 * time.Second
	DefaultLiveModel       = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultLiveVoice       = "Zephyr"
	DefaultCaptureRate     = 16000
	DefaultBlockSize       = 4096
	DefaultOutputRate      = 24000
	DefaultLogLevel        = "info"
	DefaultSinkCapacity    = 500
	DefaultServiceName     = "regis"
)

// DefaultSystemPrompt is sent with every chat turn unless overridden.
const DefaultSystemPrompt = `You are REGIS, an advanced AI assistant running inside a desktop studio.

Personality:
- Helpful, direct and friendly, with a light cyber aesthetic.
- Use emoji or ASCII art only when it fits the context.

Capabilities:
- Analyze code and files shared by the user.
- Help with debugging and explain system commands.

Response format:
- End every answer with a JSON block of follow-up suggestions:
` + "```json" + `
{"suggestions": [{"icon": "🔍", "label": "Analyze code", "action": "analyze"}]}
` + "```" + `

System context:
- Dual AI: Claude (primary) with Gemini as fallback.
`

// Config is the complete core configuration.
type Config struct {
	Backend         BackendConfig `yaml:"backend"`
	DefaultProvider string        `yaml:"defaultProvider"`
	Fallback        bool          `yaml:"fallback"`
	SystemPrompt    string        `yaml:"systemPrompt"`
	Claude          ClaudeConfig  `yaml:"claude"`
	Gemini          GeminiConfig  `yaml:"gemini"`
	Live            LiveConfig    `yaml:"live"`
	Timeouts        TimeoutConfig `yaml:"timeouts"`
	History         HistoryConfig `yaml:"history"`
	Logging         LoggingConfig `yaml:"logging"`
	Metrics         MetricsConfig `yaml:"metrics"`
	Tracing         TracingConfig `yaml:"tracing"`
}

// BackendConfig locates the local proxy backend.
type BackendConfig struct {
	URL string `yaml:"url"`
}

// ClaudeConfig configures the proxied Claude adapter.
type ClaudeConfig struct {
	Model string `yaml:"model"`
}

// GeminiConfig configures the native Gemini adapter.
type GeminiConfig struct {
	APIKey          string  `yaml:"apiKey"`
	Model           string  `yaml:"model"`
	MaxOutputTokens int     `yaml:"maxOutputTokens"`
	Temperature     float64 `yaml:"temperature"`
}

// LiveConfig configures live voice sessions.
type LiveConfig struct {
	URL         string `yaml:"url"`
	Model       string `yaml:"model"`
	Voice       string `yaml:"voice"`
	CaptureRate int    `yaml:"captureRate"`
	BlockSize   int    `yaml:"blockSize"`
	OutputRate  int    `yaml:"outputRate"`
}

// TimeoutConfig bounds supervised streams.
type TimeoutConfig struct {
	Total time.Duration `yaml:"total"`
	Stall time.Duration `yaml:"stall"`
}

// HistoryConfig configures chat history retention and persistence.
// An empty RedisURL keeps history in memory.
type HistoryConfig struct {
	Limit          int           `yaml:"limit"`
	ConversationID string        `yaml:"conversationId"`
	RedisURL       string        `yaml:"redisUrl"`
	TTL            time.Duration `yaml:"ttl"`
	Prefix         string        `yaml:"prefix"`
}

// LoggingConfig configures the logger and its in-memory sink.
type LoggingConfig struct {
	Level        string `yaml:"level"`
	SinkCapacity int    `yaml:"sinkCapacity"`
}

// MetricsConfig configures the Prometheus exporter. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig configures OTLP trace export. Empty Endpoint disables it.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		Backend:         BackendConfig{URL: DefaultBackendURL},
		DefaultProvider: string(DefaultProvider),
		Fallback:        true,
		SystemPrompt:    DefaultSystemPrompt,
		Claude:          ClaudeConfig{Model: DefaultClaudeModel},
		Gemini: GeminiConfig{
			Model:           DefaultGeminiModel,
			MaxOutputTokens: DefaultMaxOutputTokens,
			Temperature:     DefaultTemperature,
		},
		Live: LiveConfig{
			Model:       DefaultLiveModel,
			Voice:       DefaultLiveVoice,
			CaptureRate: DefaultCaptureRate,
			BlockSize:   DefaultBlockSize,
			OutputRate:  DefaultOutputRate,
		},
		Timeouts: TimeoutConfig{Total: DefaultTotalTimeout, Stall: DefaultStallTimeout},
		History: HistoryConfig{
			Limit:          DefaultHistoryLimit,
			ConversationID: DefaultConversationID,
			TTL:            DefaultHistoryTTL,
			Prefix:         DefaultHistoryPrefix,
		},
		Logging: LoggingConfig{Level: DefaultLogLevel, SinkCapacity: DefaultSinkCapacity},
		Tracing: TracingConfig{ServiceName: DefaultServiceName},
	}
}

// Load reads a YAML file, validates it against the schema, layers it over the
// defaults and applies environment overrides. An empty filename yields the
// defaults plus environment.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("config file %s: %w", filename, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse validates and decodes YAML data over the defaults without consulting
// the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if err := ValidateYAML(data); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if _, err := providers.ParseProviderID(c.DefaultProvider); err != nil {
		errs = append(errs, fmt.Errorf("defaultProvider: %w", err))
	}
	if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.url: invalid URL %q", c.Backend.URL))
	}
	if c.Timeouts.Total <= 0 || c.Timeouts.Stall <= 0 {
		errs = append(errs, errors.New("timeouts: total and stall must be positive"))
	}
	if c.History.Limit <= 0 {
		errs = append(errs, errors.New("history.limit: must be positive"))
	}
	if c.History.RedisURL != "" {
		if _, err := url.Parse(c.History.RedisURL); err != nil {
			errs = append(errs, fmt.Errorf("history.redisUrl: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Provider returns the parsed default provider.
func (c *Config) Provider() providers.ProviderID {
	id, err := providers.ParseProviderID(c.DefaultProvider)
	if err != nil {
		return DefaultProvider
	}
	return id
}

// HasGeminiKey reports whether a Gemini API key is configured.
func (c *Config) HasGeminiKey() bool {
	return c.Gemini.APIKey != ""
}
