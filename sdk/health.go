package sdk

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
)

// Health is a snapshot of backend reachability and provider selection.
type Health struct {
	Backend  bool                 `json:"backend"`
	Claude   bool                 `json:"claude"`
	Gemini   bool                 `json:"gemini"`
	Provider providers.ProviderID `json:"provider"`
	Model    string               `json:"model"`
}

// HealthCheck probes the backend's /api/health endpoint. An unreachable
// backend is reported in the result, not as an error.
func (c *Client) HealthCheck(ctx context.Context) Health {
	logger.DebugContext(ctx, "running health check")

	c.mu.RLock()
	h := Health{
		Claude:   c.available[providers.ProviderClaude],
		Gemini:   c.available[providers.ProviderGemini],
		Provider: c.current,
	}
	c.mu.RUnlock()

	h.Model = c.adapter(h.Provider).Model()
	h.Backend = c.probeBackend(ctx)
	return h
}

func (c *Client) probeBackend(ctx context.Context) bool {
	endpoint := strings.TrimRight(c.cfg.Backend.URL, "/") + "/api/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.DebugContext(ctx, "backend unreachable", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}
