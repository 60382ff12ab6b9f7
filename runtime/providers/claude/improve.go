package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
)

type improveRequest struct {
	Prompt string `json:"prompt"`
}

type improveResponse struct {
	Improved string `json:"improved"`
}

// ImprovePrompt asks the proxy to rewrite prompt. Any failure returns prompt unchanged.
func (p *Provider) ImprovePrompt(ctx context.Context, prompt string) string {
	logger.InfoContext(ctx, "improving prompt", "chars", len(prompt))

	improved, err := p.improve(ctx, prompt)
	if err != nil {
		logger.WarnContext(ctx, "prompt improvement failed", "error", logger.RedactSensitiveData(err.Error()))
		return prompt
	}
	if improved == "" {
		return prompt
	}
	return improved
}

func (p *Provider) improve(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(improveRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("improve"), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set(contentTypeHeader, applicationJSON)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("improve endpoint returned status %d", resp.StatusCode)
	}

	var out improveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Improved, nil
}
