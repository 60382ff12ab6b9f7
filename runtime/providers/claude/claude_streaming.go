package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/types"
)

const (
	contentTypeHeader = "Content-Type"
	applicationJSON   = "application/json"
)

type chatRequest struct {
	Model    string              `json:"model"`
	System   string              `json:"system"`
	Messages []types.ChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

// streamFrame is one decoded data payload from the proxy.
type streamFrame struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Stream implements providers.Provider.
//
// The user message is appended to the window before the request is sent. The
// assistant message is appended only after the stream completes with text,
// so a failed turn leaves the user message without a reply. The window is
// truncated after every turn, failed or not.
func (p *Provider) Stream(ctx context.Context, req *providers.Request, cb providers.Callbacks) {
	p.turnMu.Lock()
	defer p.turnMu.Unlock()

	model := req.Model
	if model == "" {
		model = p.Model()
	}
	ctx = logger.WithLoggingContext(ctx, &logger.LoggingFields{
		Provider: string(providers.ProviderClaude),
		Model:    model,
	})
	if len(req.Attachments) > 0 {
		logger.WarnContext(ctx, "attachments are not forwarded by the proxy", "count", len(req.Attachments))
	}

	p.window.Append(types.NewUserMessage(req.Message))
	logger.DebugContext(ctx, "sending chat turn", "chars", len(req.Message), "history", p.window.Len())

	full, err := p.stream(ctx, chatRequest{
		Model:    model,
		System:   p.system,
		Messages: p.window.Messages(),
		Stream:   true,
	}, cb)
	if err != nil {
		p.window.Truncate()
		p.persist(ctx)
		logger.DebugContext(ctx, "chat turn failed", "error", err, "partial_chars", len(full))
		cb.Fail(err)
		return
	}

	p.window.Append(types.NewAssistantMessage(full))
	p.window.Truncate()
	p.persist(ctx)

	logger.DebugContext(ctx, "response assembled", "chars", len(full))
	cb.Complete(full)
}

func (p *Provider) stream(ctx context.Context, body chatRequest, cb providers.Callbacks) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.endpoint("chat")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set(contentTypeHeader, applicationJSON)
	httpReq.Header.Set("Accept", "text/event-stream")

	logger.APIRequest(ctx, string(providers.ProviderClaude), http.MethodPost, url, body)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &providers.TransportError{
			Provider: providers.ProviderClaude,
			Err:      providers.Classify("", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize)) // NOSONAR: read error leaves the body empty
		httpErr := providers.NewHTTPError(providers.ProviderClaude, resp.StatusCode, string(errBody))
		logger.APIResponse(ctx, string(providers.ProviderClaude), resp.StatusCode, httpErr)
		return "", httpErr
	}
	logger.APIResponse(ctx, string(providers.ProviderClaude), resp.StatusCode, nil)

	return p.readFrames(ctx, resp.Body, cb)
}

func (p *Provider) readFrames(ctx context.Context, body io.Reader, cb providers.Callbacks) (string, error) {
	scanner := providers.NewSSEScanner(body)
	scanner.OnRead = func(int) { cb.Activity() }

	var full strings.Builder
	for scanner.Scan() {
		var frame streamFrame
		if err := json.Unmarshal([]byte(scanner.Data()), &frame); err != nil {
			logger.WarnContext(ctx, "failed to parse stream frame", "error", err)
			continue
		}
		if frame.Error != "" {
			return full.String(), providers.Classify(providers.ProviderClaude,
				fmt.Errorf("stream error: %s", frame.Error))
		}
		if frame.Text == "" {
			logger.DebugContext(ctx, "ignoring frame without text")
			continue
		}
		full.WriteString(frame.Text)
		cb.Token(frame.Text)
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return full.String(), ctx.Err()
		}
		return full.String(), providers.Classify(providers.ProviderClaude, err)
	}
	if full.Len() == 0 {
		return "", providers.EmptyResponse(providers.ProviderClaude)
	}
	return full.String(), nil
}

func (p *Provider) endpoint(action string) string {
	return fmt.Sprintf("%s/api/%s/%s", p.baseURL, providers.ProviderClaude, action)
}
