package config

import (
	"errors"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvBackendURL      = "REGIS_BACKEND_URL"
	EnvDefaultProvider = "REGIS_DEFAULT_PROVIDER"
	EnvClaudeModel     = "REGIS_CLAUDE_MODEL"
	EnvGeminiModel     = "REGIS_GEMINI_MODEL"
	EnvRedisURL        = "REGIS_REDIS_URL"
	EnvConversationID  = "REGIS_CONVERSATION_ID"
	EnvTotalTimeout    = "REGIS_TOTAL_TIMEOUT"
	EnvStallTimeout    = "REGIS_STALL_TIMEOUT"
	EnvMetricsAddr     = "REGIS_METRICS_ADDR"
	EnvLogLevel        = "LOG_LEVEL"
	EnvOTLPEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// geminiKeyEnv lists the variables that may hold the Gemini key, highest priority first.
var geminiKeyEnv = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "VITE_GOOGLE_API_KEY", "VITE_API_KEY", "API_KEY"}

// DotEnvFiles are loaded by LoadDotEnv, highest priority first.
var DotEnvFiles = []string{".env.local", ".env"}

// LoadDotEnv loads variables from dotenv files without overriding ones already
// set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = DotEnvFiles
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
// Unparseable durations are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvBackendURL, &c.Backend.URL)
	set(EnvDefaultProvider, &c.DefaultProvider)
	set(EnvClaudeModel, &c.Claude.Model)
	set(EnvGeminiModel, &c.Gemini.Model)
	set(EnvRedisURL, &c.History.RedisURL)
	set(EnvConversationID, &c.History.ConversationID)
	set(EnvMetricsAddr, &c.Metrics.Addr)
	set(EnvLogLevel, &c.Logging.Level)
	set(EnvOTLPEndpoint, &c.Tracing.Endpoint)

	for _, key := range geminiKeyEnv {
		if v, ok := lookup(key); ok && v != "" {
			c.Gemini.APIKey = v
			break
		}
	}

	setDuration := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
			return
		}
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			*dst = time.Duration(secs) * time.Second
		}
	}
	setDuration(EnvTotalTimeout, &c.Timeouts.Total)
	setDuration(EnvStallTimeout, &c.Timeouts.Stall)
}
