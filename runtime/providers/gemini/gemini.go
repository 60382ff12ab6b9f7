// Package gemini implements the native streaming adapter on top of the
// google.golang.org/genai chat API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/history"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/types"
)

// Generation defaults applied to every chat session.
const (
	DefaultModel           = "gemini-2.5-flash"
	DefaultMaxOutputTokens = 8192
	DefaultTemperature     = 0.7
)

// ChatSession is the slice of *genai.Chat the adapter drives.
type ChatSession interface {
	SendMessageStream(ctx context.Context, parts ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error]
}

// SessionFactory opens a chat session for model seeded with prior turns.
type SessionFactory func(
	ctx context.Context, model string, cfg *genai.GenerateContentConfig, seed []*genai.Content,
) (ChatSession, error)

// NewClientFactory returns a SessionFactory backed by a lazily created genai client.
// The HTTP transport is wrapped for tracing.
func NewClientFactory(apiKey string, httpClient *http.Client) SessionFactory {
	var (
		once      sync.Once
		client    *genai.Client
		clientErr error
	)
	return func(ctx context.Context, model string, cfg *genai.GenerateContentConfig, seed []*genai.Content) (ChatSession, error) {
		once.Do(func() {
			hc := &http.Client{}
			if httpClient != nil {
				c := *httpClient
				hc = &c
			}
			base := hc.Transport
			if base == nil {
				base = http.DefaultTransport
			}
			hc.Transport = otelhttp.NewTransport(base)

			client, clientErr = genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:     apiKey,
				Backend:    genai.BackendGeminiAPI,
				HTTPClient: hc,
			})
		})
		if clientErr != nil {
			return nil, fmt.Errorf("failed to create genai client: %w", clientErr)
		}
		chat, err := client.Chats.Create(ctx, model, cfg, seed)
		if err != nil {
			return nil, err
		}
		return chat, nil
	}
}

// Config configures a Provider.
type Config struct {
	APIKey       string
	Model        string
	SystemPrompt string

	MaxOutputTokens int32
	// Temperature defaults to DefaultTemperature when nil. Zero is honored.
	Temperature     *float32

	// Factory overrides session creation. When nil a genai client factory is
	// built from APIKey; with no key the provider reports ErrNotInitialized.
	Factory    SessionFactory
	HTTPClient *http.Client

	HistoryLimit   int
	Store          history.Store
	ConversationID string
}

// Provider streams chat turns through a single persistent genai chat session.
type Provider struct {
	factory   SessionFactory
	system    string
	maxTokens int32
	temp      float32
	window    *history.Window
	store     history.Store
	convID    string

	turnMu sync.Mutex

	mu      sync.Mutex
	model   string
	session ChatSession
}

// NewProvider creates a native streaming provider.
func NewProvider(cfg Config) *Provider {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	temp := float32(DefaultTemperature)
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}
	factory := cfg.Factory
	if factory == nil && cfg.APIKey != "" {
		factory = NewClientFactory(cfg.APIKey, cfg.HTTPClient)
	}
	return &Provider{
		factory:   factory,
		system:    cfg.SystemPrompt,
		maxTokens: maxTokens,
		temp:      temp,
		window:    history.NewWindow(cfg.HistoryLimit),
		store:     cfg.Store,
		convID:    cfg.ConversationID,
		model:     model,
	}
}

// ID implements providers.Provider.
func (p *Provider) ID() providers.ProviderID {
	return providers.ProviderGemini
}

// Model returns the session model.
func (p *Provider) Model() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

// SetModel switches the session model. A different model drops the session and
// the conversation with it.
func (p *Provider) SetModel(model string) {
	p.mu.Lock()
	if model == "" || model == p.model {
		p.mu.Unlock()
		return
	}
	logger.Warn("model switched, chat session reset", "provider", providers.ProviderGemini, "from", p.model, "to", model)
	p.model = model
	p.session = nil
	p.mu.Unlock()

	p.window.Clear()
}

// Reset implements providers.Resetter. The next turn opens a fresh session.
func (p *Provider) Reset() {
	p.ClearHistory(context.Background())
}

// ClearHistory drops the session and the conversation window.
func (p *Provider) ClearHistory(ctx context.Context) {
	p.turnMu.Lock()
	defer p.turnMu.Unlock()

	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()

	p.window.Clear()
	if p.store != nil && p.convID != "" {
		if err := p.store.Delete(ctx, p.convID); err != nil {
			logger.WarnContext(ctx, "failed to delete stored history", "provider", providers.ProviderGemini, "error", err)
		}
	}
	logger.InfoContext(ctx, "chat session cleared", "provider", providers.ProviderGemini)
}

// History returns a copy of the conversation window.
func (p *Provider) History() []types.ChatMessage {
	return p.window.Messages()
}

// LoadHistory restores the window from the store. The restored turns seed the
// next session. A missing conversation is not an error.
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

	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
	return nil
}

func (p *Provider) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: p.maxTokens,
		Temperature:     genai.Ptr(p.temp),
		SafetySettings:  permissiveSafetySettings(),
	}
	if p.system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.system, genai.RoleUser)
	}
	return cfg
}

// permissiveSafetySettings disables blocking for the four adjustable harm categories.
func permissiveSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	out := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		out = append(out, &genai.SafetySetting{Category: c, Threshold: genai.HarmBlockThresholdBlockNone})
	}
	return out
}

// chatSession returns the live session, creating it on first use or after a
// model switch. model overrides the configured model for this call.
func (p *Provider) chatSession(ctx context.Context, model string) (ChatSession, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if model != "" && model != p.model {
		p.model = model
		p.session = nil
	}
	if p.session != nil {
		return p.session, p.model, nil
	}
	if p.factory == nil {
		return nil, p.model, fmt.Errorf("gemini %w, check your API key configuration", providers.ErrNotInitialized)
	}

	session, err := p.factory(ctx, p.model, p.generateConfig(), seedContents(p.window.Messages()))
	if err != nil {
		return nil, p.model, err
	}
	logger.InfoContext(ctx, "chat session created", "provider", providers.ProviderGemini, "model", p.model)
	p.session = session
	return session, p.model, nil
}

// seedContents converts completed exchanges into genai history. A trailing
// user message without a reply is left out.
func seedContents(msgs []types.ChatMessage) []*genai.Content {
	if n := len(msgs); n > 0 && msgs[n-1].Role == types.RoleUser {
		msgs = msgs[:n-1]
	}
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func (p *Provider) persist(ctx context.Context) {
	if p.store == nil || p.convID == "" {
		return
	}
	if err := p.store.Save(context.WithoutCancel(ctx), p.convID, p.window.Messages()); err != nil {
		logger.WarnContext(ctx, "failed to persist history", "provider", providers.ProviderGemini, "error", err)
	}
}
