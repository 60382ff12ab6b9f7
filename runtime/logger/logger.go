// Package logger provides structured logging with automatic API key redaction.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - streaming call logging (start, completion, failures)
//   - proxy HTTP request and response logging
//   - automatic API key and bearer token redaction
//   - contextual logging with request and session tracing
//   - an optional in-memory Sink mirroring recent records for a log panel
//
// All exported functions use the global DefaultLogger which can be configured
// for different log levels and sinks.
package logger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger
)

// Guarded by mu; DefaultLogger is rebuilt whenever one of them changes.
var (
	mu     sync.Mutex
	level  = slog.LevelInfo
	output io.Writer
	sink   *Sink
)

func init() {
	output = os.Stderr
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}
	rebuild()
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// rebuild replaces DefaultLogger. Must be called with mu held or during init.
func rebuild() {
	var handler slog.Handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	if sink != nil {
		handler = newTeeHandler(handler, sink)
	}
	DefaultLogger = slog.New(newContextHandler(handler))
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(l slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	rebuild()
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput redirects the text handler output. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	output = w
	rebuild()
}

// SetSink installs s as the in-memory mirror of emitted records.
// Passing nil detaches the current sink.
func SetSink(s *Sink) {
	mu.Lock()
	defer mu.Unlock()
	sink = s
	rebuild()
}

// CurrentSink returns the installed sink, or nil.
func CurrentSink() *Sink {
	mu.Lock()
	defer mu.Unlock()
	return sink
}

// Info logs an informational message with structured key-value attributes.
// Args should be provided in key-value pairs: key1, value1, key2, value2, ...
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// StreamStart logs the start of a streaming call. provider and model are
// omitted when ctx already carries them.
func StreamStart(ctx context.Context, provider, model string, chars int, attrs ...any) {
	fields := lifecycleFields(ctx, provider, model)
	InfoContext(ctx, "stream started", append(append(fields, "chars", chars), attrs...)...)
}

// StreamComplete logs a completed streaming call with the assembled response length.
func StreamComplete(ctx context.Context, provider string, chars int, attrs ...any) {
	fields := lifecycleFields(ctx, provider, "")
	InfoContext(ctx, "stream complete", append(append(fields, "chars", chars), attrs...)...)
}

// StreamError logs a failed streaming call.
func StreamError(ctx context.Context, provider string, err error, attrs ...any) {
	fields := lifecycleFields(ctx, provider, "")
	fields = append(fields, "error", RedactSensitiveData(errString(err)))
	ErrorContext(ctx, "stream failed", append(fields, attrs...)...)
}

// lifecycleFields returns the provider and model attributes the context
// handler will not add itself.
func lifecycleFields(ctx context.Context, provider, model string) []any {
	fields := make([]any, 0, 8)
	if provider != "" && stringValue(ctx, ContextKeyProvider) == "" {
		fields = append(fields, string(ContextKeyProvider), provider)
	}
	if model != "" && stringValue(ctx, ContextKeyModel) == "" {
		fields = append(fields, string(ContextKeyModel), model)
	}
	return fields
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var (
	// apiKeyPatterns contains compiled regular expressions for detecting sensitive data.
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`), // Anthropic API keys
		regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),      // OpenAI-style API keys
		regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),    // Google API keys
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.-]+`), // Bearer tokens
	}
)

// RedactSensitiveData removes API keys and other sensitive information from strings.
// Matches keep their first four characters so the key family stays recognizable.
func RedactSensitiveData(input string) string {
	result := input

	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}

// APIRequest logs HTTP API request details at debug level with redaction.
// This function is a no-op when debug logging is disabled.
func APIRequest(ctx context.Context, provider, method, url string, body any) {
	if !DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := make([]any, 0, 8)
	attrs = append(attrs,
		"provider", provider,
		"method", method,
		"url", RedactSensitiveData(url),
	)

	if body != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			attrs = append(attrs, "body_error", err.Error())
		} else {
			attrs = append(attrs, "body", RedactSensitiveData(string(bodyJSON)))
		}
	}

	DebugContext(ctx, "api request", attrs...)
}

// APIResponse logs HTTP API response status at debug level, or at error level when err is set.
func APIResponse(ctx context.Context, provider string, statusCode int, err error) {
	if err != nil {
		ErrorContext(ctx, "api response error",
			"provider", provider,
			"status_code", statusCode,
			"error", RedactSensitiveData(err.Error()))
		return
	}
	DebugContext(ctx, "api response", "provider", provider, "status_code", statusCode)
}
