package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/config"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/live"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/metrics/prometheus"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers/claude"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers/gemini"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/supervisor"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/types"
)

// historyLoadTimeout bounds restoring both conversations in New.
const historyLoadTimeout = 5 * time.Second

// Fallback outcomes reported to metrics.
const (
	fallbackSuccess = "success"
	fallbackFailure = "failure"
)

// chatProvider is the surface the client needs from each adapter.
type chatProvider interface {
	providers.Provider
	Model() string
	SetModel(model string)
	History() []types.ChatMessage
	LoadHistory(ctx context.Context) error
	ClearHistory(ctx context.Context)
}

// Client routes chat turns to the active provider, falls back to the other
// one on failure and owns the live voice session. It is safe for concurrent use.
type Client struct {
	cfg        *config.Config
	opts       *options
	httpClient *http.Client
	sink       *logger.Sink
	closeStore func() error
	sup        *supervisor.Supervisor

	claude *claude.Provider
	gemini *gemini.Provider

	mu        sync.RWMutex
	current   providers.ProviderID
	available map[providers.ProviderID]bool
	closed    bool

	liveMu      sync.Mutex
	liveSession *live.Session
}

// New creates a client from cfg. A nil cfg uses config.Default.
//
//	client, err := sdk.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	store := o.store
	closeStore := func() error { return nil }
	if store == nil {
		var err error
		store, closeStore, err = openStore(&cfg.History)
		if err != nil {
			return nil, err
		}
	}
	store = instrumentedStore{inner: store}

	sink := o.sink
	if sink == nil {
		sink = logger.NewSink(cfg.Logging.SinkCapacity)
	}
	logger.SetSink(sink)

	temperature := float32(cfg.Gemini.Temperature)
	c := &Client{
		cfg:        cfg,
		opts:       o,
		httpClient: httpClient,
		sink:       sink,
		closeStore: closeStore,
		sup: supervisor.New(supervisor.Config{
			TotalTimeout:   cfg.Timeouts.Total,
			StallTimeout:   cfg.Timeouts.Stall,
			TracerProvider: o.tracerProvider,
		}),
		claude: claude.NewProvider(claude.Config{
			BaseURL:        cfg.Backend.URL,
			Model:          cfg.Claude.Model,
			SystemPrompt:   cfg.SystemPrompt,
			HTTPClient:     httpClient,
			HistoryLimit:   cfg.History.Limit,
			Store:          store,
			ConversationID: conversationID(cfg, providers.ProviderClaude),
		}),
		gemini: gemini.NewProvider(gemini.Config{
			APIKey:          cfg.Gemini.APIKey,
			Model:           cfg.Gemini.Model,
			SystemPrompt:    cfg.SystemPrompt,
			MaxOutputTokens: int32(cfg.Gemini.MaxOutputTokens),
			Temperature:     &temperature,
			Factory:         o.geminiFactory,
			HTTPClient:      httpClient,
			HistoryLimit:    cfg.History.Limit,
			Store:           store,
			ConversationID:  conversationID(cfg, providers.ProviderGemini),
		}),
		available: map[providers.ProviderID]bool{
			providers.ProviderClaude: o.remote == nil || o.remote.HasClaudeKey,
			providers.ProviderGemini: o.geminiFactory != nil || cfg.HasGeminiKey(),
		},
	}

	current, err := c.initialProvider(cfg.Provider())
	if err != nil {
		_ = c.release()
		return nil, err
	}
	c.current = current

	loadCtx, cancel := context.WithTimeout(context.Background(), historyLoadTimeout)
	defer cancel()
	for _, p := range []chatProvider{c.claude, c.gemini} {
		if err := p.LoadHistory(loadCtx); err != nil {
			logger.Warn("failed to restore chat history", "provider", p.ID(), "error", err)
		}
	}

	logger.Info("client initialized", "provider", current, "model", c.adapter(current).Model())
	return c, nil
}

// conversationID keys each provider's window separately so the two histories never mix.
func conversationID(cfg *config.Config, id providers.ProviderID) string {
	if cfg.History.ConversationID == "" {
		return ""
	}
	return cfg.History.ConversationID + ":" + string(id)
}

func (c *Client) initialProvider(preferred providers.ProviderID) (providers.ProviderID, error) {
	switch {
	case c.available[preferred]:
		return preferred, nil
	case c.available[preferred.Other()]:
		logger.Warn("preferred provider not available, using fallback",
			"preferred", preferred, "provider", preferred.Other())
		return preferred.Other(), nil
	default:
		logger.Error("no API keys configured")
		return "", ErrNoProvider
	}
}

func (c *Client) adapter(id providers.ProviderID) chatProvider {
	if id == providers.ProviderGemini {
		return c.gemini
	}
	return c.claude
}

// SendMessageStream streams a reply to message from the active provider.
//
// Tokens are delivered through cb as they arrive. When the active provider
// fails for a reason other than missing configuration and the other provider
// is available, the message is retried there; a successful fallback makes it
// the active provider. Exactly one of cb.OnComplete or cb.OnError is invoked,
// and the error passed to OnError is also returned. If both providers fail the
// error is a *FallbackError.
func (c *Client) SendMessageStream(
	ctx context.Context, message string, cb providers.Callbacks, attachments ...providers.Attachment,
) error {
	c.mu.RLock()
	closed, primary := c.closed, c.current
	c.mu.RUnlock()
	if closed {
		cb.Fail(ErrClientClosed)
		return ErrClientClosed
	}

	logger.InfoContext(ctx, "routing message", "provider", primary, "model", c.adapter(primary).Model())

	primaryErr := c.stream(ctx, primary, message, attachments, cb)
	if primaryErr == nil {
		return nil
	}

	fallback := primary.Other()
	if !c.canFallback(ctx, primaryErr, fallback) {
		cb.Fail(primaryErr)
		return primaryErr
	}

	logger.WarnContext(ctx, "primary provider failed, trying fallback",
		"provider", primary, "fallback", fallback)
	c.setCurrent(fallback)

	fallbackErr := c.stream(ctx, fallback, message, attachments, cb)
	if fallbackErr == nil {
		prometheus.RecordFallback(string(primary), string(fallback), fallbackSuccess)
		logger.InfoContext(ctx, "fallback successful", "provider", fallback)
		return nil
	}

	c.setCurrent(primary)
	prometheus.RecordFallback(string(primary), string(fallback), fallbackFailure)
	err := &FallbackError{
		Primary:     primary,
		Fallback:    fallback,
		PrimaryErr:  primaryErr,
		FallbackErr: fallbackErr,
	}
	logger.ErrorContext(ctx, "both providers failed", "error", logger.RedactSensitiveData(err.Error()))
	cb.Fail(err)
	return err
}

// stream runs one supervised call. Tokens and completion reach cb directly;
// the error is returned so the caller can decide on fallback.
func (c *Client) stream(
	ctx context.Context, id providers.ProviderID, message string, attachments []providers.Attachment,
	cb providers.Callbacks,
) error {
	p := c.adapter(id)
	req := &providers.Request{
		Message:     message,
		Model:       p.Model(),
		Attachments: attachments,
	}
	return c.sup.Run(ctx, p, req, providers.Callbacks{
		OnToken:    cb.OnToken,
		OnComplete: cb.OnComplete,
		OnActivity: cb.OnActivity,
	})
}

func (c *Client) canFallback(ctx context.Context, err error, fallback providers.ProviderID) bool {
	if !c.cfg.Fallback || providers.IsConfigError(err) || ctx.Err() != nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available[fallback]
}

func (c *Client) setCurrent(id providers.ProviderID) {
	c.mu.Lock()
	c.current = id
	c.mu.Unlock()
}

// ImprovePrompt asks the backend to rewrite prompt. Failures return prompt unchanged.
func (c *Client) ImprovePrompt(ctx context.Context, prompt string) string {
	return c.claude.ImprovePrompt(ctx, prompt)
}

// ClearChatHistory drops both conversations, including their persisted copies.
func (c *Client) ClearChatHistory(ctx context.Context) {
	c.claude.ClearHistory(ctx)
	c.gemini.ClearHistory(ctx)
	logger.InfoContext(ctx, "all chat history cleared")
}

// ChatHistory returns the active provider's conversation window.
func (c *Client) ChatHistory() []types.ChatMessage {
	return c.adapter(c.Provider()).History()
}

// Provider returns the active provider.
func (c *Client) Provider() providers.ProviderID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// SetProvider makes id the active provider and clears both conversations.
// A provider without credentials is rejected with ErrProviderUnavailable.
func (c *Client) SetProvider(ctx context.Context, id providers.ProviderID) error {
	if _, err := providers.ParseProviderID(string(id)); err != nil {
		return err
	}
	c.mu.Lock()
	if !c.available[id] {
		c.mu.Unlock()
		logger.ErrorContext(ctx, "cannot switch provider", "provider", id, "error", ErrProviderUnavailable)
		return fmt.Errorf("cannot switch to %s: %w", id, ErrProviderUnavailable)
	}
	c.current = id
	c.mu.Unlock()

	c.ClearChatHistory(ctx)
	logger.InfoContext(ctx, "provider switched", "provider", id)
	return nil
}

// AvailableProviders lists the providers that have credentials, Claude first.
func (c *Client) AvailableProviders() []providers.ProviderID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]providers.ProviderID, 0, 2)
	for _, id := range []providers.ProviderID{providers.ProviderClaude, providers.ProviderGemini} {
		if c.available[id] {
			out = append(out, id)
		}
	}
	return out
}

// Model returns the active provider's model.
func (c *Client) Model() string {
	return c.adapter(c.Provider()).Model()
}

// SetModel selects a model and switches to the provider that serves it, judged
// by the model prefix. Selecting a Gemini model always starts a fresh Gemini
// chat. Models of unknown providers are ignored with a warning.
func (c *Client) SetModel(model string) {
	id, ok := providers.ProviderForModel(model)
	if !ok {
		logger.Warn("unsupported model selected", "model", model)
		return
	}

	c.adapter(id).SetModel(model)
	if id == providers.ProviderGemini {
		c.gemini.ClearHistory(context.Background())
	}

	c.mu.Lock()
	c.current = id
	available := c.available[id]
	c.mu.Unlock()

	if available {
		logger.Info("model selected, provider switched", "provider", id, "model", model)
	} else {
		logger.Warn("model selected but provider has no API key", "provider", id, "model", model)
	}
}

// Logs returns the retained log records, oldest first.
func (c *Client) Logs() []types.LogEntry {
	return c.sink.Entries()
}

// ClearLogs drops the retained log records.
func (c *Client) ClearLogs() {
	c.sink.Clear()
}

// Close ends the live session, releases the history store and detaches the
// log sink. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	if err := c.DisconnectLive(); err != nil {
		errs = append(errs, err)
	}
	if err := c.release(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Client) release() error {
	if logger.CurrentSink() == c.sink {
		logger.SetSink(nil)
	}
	if err := c.closeStore(); err != nil {
		return fmt.Errorf("failed to close history store: %w", err)
	}
	return nil
}
