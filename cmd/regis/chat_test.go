package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/config"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/sdk"
)

func newProxy(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/claude/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, text := range []string{"Hi ", "there"} {
			payload, _ := json.Marshal(map[string]string{"text": text})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
	})
	mux.HandleFunc("/api/claude/improve", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"improved": "better prompt"})
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRepl(t *testing.T, input string) (*repl, *bytes.Buffer) {
	t.Helper()
	srv := newProxy(t)
	cfg := config.Default()
	cfg.Backend.URL = srv.URL

	client, err := sdk.New(cfg, sdk.WithLogSink(logger.NewSink(100)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	var out bytes.Buffer
	return &repl{client: client, in: strings.NewReader(input), out: &out}, &out
}

func TestRepl_StreamsReply(t *testing.T) {
	r, out := newTestRepl(t, "hello\n\n")

	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, out.String(), "Hi there\n")
	assert.Len(t, r.client.ChatHistory(), 2)
}

func TestRepl_Commands(t *testing.T) {
	input := strings.Join([]string{
		"hello",
		"/clear",
		"/model claude-opus-4-20250514",
		"/provider",
		"/provider gemini",
		"/improve make it good",
		"/improve",
		"/health",
		"/logs 3",
		"/bogus",
		"/help",
		"/quit",
		"never sent",
	}, "\n")
	r, out := newTestRepl(t, input)

	require.NoError(t, r.run(context.Background()))
	text := out.String()

	assert.Contains(t, text, "history cleared")
	assert.Empty(t, r.client.ChatHistory())
	assert.Contains(t, text, "claude-opus-4-20250514")
	assert.Contains(t, text, "better prompt")
	assert.Contains(t, text, "usage: /improve")
	assert.Contains(t, text, "provider has no API key")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Contains(t, text, "/improve <text>    rewrite a prompt")
	assert.NotContains(t, text, "never sent")
	assert.Equal(t, providers.ProviderClaude, r.client.Provider())
}

func TestRepl_InstallsInterruptHandlerPerTurn(t *testing.T) {
	r, _ := newTestRepl(t, "hello\n")
	var installed, stopped int
	r.onInterrupt = func(context.CancelFunc) func() {
		installed++
		return func() { stopped++ }
	}

	require.NoError(t, r.run(context.Background()))
	assert.Equal(t, 1, installed)
	assert.Equal(t, 1, stopped)
}

func resetViper(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		for _, key := range []string{flagConfig, flagVerbose, flagMetricsAddr, flagOTLPEndpoint, flagProvider, flagModel} {
			viper.Set(key, nil)
		}
	})
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "regis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  url: http://backend:9000\n"), 0o600))

	viper.Set(flagConfig, path)
	viper.Set(flagMetricsAddr, ":9191")
	viper.Set(flagOTLPEndpoint, "localhost:4318")
	viper.Set(flagProvider, "Gemini")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.Backend.URL)
	assert.Equal(t, ":9191", cfg.Metrics.Addr)
	assert.Equal(t, "localhost:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, "gemini", cfg.DefaultProvider)
}

func TestLoadConfig_InvalidProvider(t *testing.T) {
	resetViper(t)
	viper.Set(flagProvider, "grok")

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestPrintHealth(t *testing.T) {
	var buf bytes.Buffer
	printHealth(&buf, sdk.Health{Backend: true, Provider: providers.ProviderGemini, Model: "gemini-2.5-flash"})

	text := buf.String()
	assert.Contains(t, text, "backend")
	assert.Contains(t, text, "gemini-2.5-flash")
	assert.Equal(t, 5, strings.Count(text, "\n"))
}
