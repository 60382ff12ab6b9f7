package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
)

// maxRemoteConfigSize bounds the /api/config response.
const maxRemoteConfigSize = 64 * 1024

// RemoteConfig is the key material served by the backend at /api/config.
type RemoteConfig struct {
	ClaudeKey       string `json:"claudeKey"`
	GeminiKey       string `json:"geminiKey"`
	EnvKey          string `json:"envKey"`
	DefaultProvider string `json:"defaultProvider"`
	HasClaudeKey    bool   `json:"hasClaudeKey"`
	HasGeminiKey    bool   `json:"hasGeminiKey"`
}

// GeminiAPIKey returns the Gemini key, falling back to the backend's environment key.
func (r *RemoteConfig) GeminiAPIKey() string {
	if r.GeminiKey != "" {
		return r.GeminiKey
	}
	return r.EnvKey
}

// FetchRemote retrieves key material from the backend.
func FetchRemote(ctx context.Context, client *http.Client, backendURL string) (*RemoteConfig, error) {
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := strings.TrimRight(backendURL, "/") + "/api/config"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create config request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config fetch failed: %d", resp.StatusCode)
	}

	var remote RemoteConfig
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRemoteConfigSize)).Decode(&remote); err != nil {
		return nil, fmt.Errorf("failed to decode config response: %w", err)
	}
	if !remote.HasGeminiKey && remote.GeminiAPIKey() != "" {
		remote.HasGeminiKey = true
	}
	logger.InfoContext(ctx, "remote configuration loaded",
		"has_claude_key", remote.HasClaudeKey,
		"has_gemini_key", remote.HasGeminiKey,
		"default_provider", remote.DefaultProvider)
	return &remote, nil
}

// MergeRemote fills gaps in c from remote. Locally configured values win.
func (c *Config) MergeRemote(remote *RemoteConfig, providerSet bool) {
	if remote == nil {
		return
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = remote.GeminiAPIKey()
	}
	if !providerSet {
		if id, err := providers.ParseProviderID(remote.DefaultProvider); err == nil {
			c.DefaultProvider = string(id)
		}
	}
}
