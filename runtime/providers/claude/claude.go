// Package claude implements the proxied server-sent-events chat adapter.
//
// Requests go to a backend proxy (POST /api/claude/chat) that holds the vendor
// credentials and relays the model output as "data: {json}" frames.
package claude

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/history"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/types"
)

const (
	// DefaultModel is used when neither the config nor the request names a model.
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultBaseURL is the address of the local backend proxy.
	DefaultBaseURL = "http://127.0.0.1:8000"

	maxErrorBodySize = 64 << 10
)

// Config configures a Provider.
type Config struct {
	BaseURL      string
	Model        string
	SystemPrompt string

	// HTTPClient is used for all proxy calls. Its transport is wrapped for tracing.
	HTTPClient *http.Client

	// HistoryLimit bounds the retained conversation window.
	HistoryLimit int

	// Store, when set, persists the window under ConversationID after each turn.
	Store          history.Store
	ConversationID string
}

// Provider streams chat turns through the backend proxy and owns the
// conversation window sent with every request.
type Provider struct {
	baseURL string
	system  string
	client  *http.Client
	window  *history.Window
	store   history.Store
	convID  string

	// turnMu serializes turns so history mutations never interleave.
	turnMu sync.Mutex

	mu    sync.RWMutex
	model string
}

// NewProvider creates a proxied SSE provider.
func NewProvider(cfg Config) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	client := &http.Client{}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		client = &c
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = otelhttp.NewTransport(base)

	return &Provider{
		baseURL: baseURL,
		system:  cfg.SystemPrompt,
		client:  client,
		window:  history.NewWindow(cfg.HistoryLimit),
		store:   cfg.Store,
		convID:  cfg.ConversationID,
		model:   model,
	}
}

// ID implements providers.Provider.
func (p *Provider) ID() providers.ProviderID {
	return providers.ProviderClaude
}

// Model returns the model used when a request names none.
func (p *Provider) Model() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// SetModel changes the default model. The conversation is kept.
func (p *Provider) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if model != "" && model != p.model {
		logger.Info("model switched", "provider", providers.ProviderClaude, "from", p.model, "to", model)
		p.model = model
	}
}

// History returns a copy of the conversation window.
func (p *Provider) History() []types.ChatMessage {
	return p.window.Messages()
}

// LoadHistory restores the window from the store. A missing conversation is not an error.
func (p *Provider) LoadHistory(ctx context.Context) error {
	if p.store == nil || p.convID == "" {
		return nil
	}
	msgs, err := p.store.Load(ctx, p.convID)
	if errors.Is(err, history.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	p.window.Replace(msgs)
	logger.DebugContext(ctx, "history restored", "provider", providers.ProviderClaude, "messages", len(msgs))
	return nil
}

// ClearHistory empties the window and deletes the stored copy.
func (p *Provider) ClearHistory(ctx context.Context) {
	p.turnMu.Lock()
	defer p.turnMu.Unlock()

	p.window.Clear()
	if p.store != nil && p.convID != "" {
		if err := p.store.Delete(ctx, p.convID); err != nil {
			logger.WarnContext(ctx, "failed to delete stored history", "provider", providers.ProviderClaude, "error", err)
		}
	}
	logger.InfoContext(ctx, "chat history cleared", "provider", providers.ProviderClaude)
}

// Reset implements providers.Resetter.
func (p *Provider) Reset() {
	p.ClearHistory(context.Background())
}

// persist saves the window. Store failures never fail a turn.
func (p *Provider) persist(ctx context.Context) {
	if p.store == nil || p.convID == "" {
		return
	}
	if err := p.store.Save(context.WithoutCancel(ctx), p.convID, p.window.Messages()); err != nil {
		logger.WarnContext(ctx, "failed to persist history", "provider", providers.ProviderClaude, "error", err)
	}
}
