// Package providers defines the uniform streaming contract shared by every
// model provider adapter.
//
// An adapter turns one user message into a sequence of OnToken calls followed
// by exactly one terminal OnComplete or OnError. Adapters are selected by
// ProviderID; the set is closed:
//   - claude: a backend proxy speaking server-sent events (package claude)
//   - gemini: the native genai SDK chat stream (package gemini)
//
// Transport failures are mapped onto the error taxonomy in errors.go before
// they reach callers.
package providers

import (
	"context"
	"fmt"
	"strings"
)

// ProviderID identifies a provider adapter.
type ProviderID string

// Supported providers.
const (
	ProviderClaude ProviderID = "claude"
	ProviderGemini ProviderID = "gemini"
)

// ParseProviderID validates a provider name.
func ParseProviderID(name string) (ProviderID, error) {
	switch id := ProviderID(strings.ToLower(strings.TrimSpace(name))); id {
	case ProviderClaude, ProviderGemini:
		return id, nil
	default:
		return "", fmt.Errorf("unknown provider %q", name)
	}
}

// ProviderForModel returns the provider that serves a model id, judged by its prefix.
func ProviderForModel(model string) (ProviderID, bool) {
	switch {
	case strings.HasPrefix(model, string(ProviderClaude)):
		return ProviderClaude, true
	case strings.HasPrefix(model, string(ProviderGemini)):
		return ProviderGemini, true
	default:
		return "", false
	}
}

// Other returns the fallback partner of a provider.
func (id ProviderID) Other() ProviderID {
	if id == ProviderClaude {
		return ProviderGemini
	}
	return ProviderClaude
}

// Attachment is an inline binary part sent alongside a message.
// Data holds base64 text.
type Attachment struct {
	Type     string `json:"type"`
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Request is a single user turn.
type Request struct {
	Message     string
	Model       string
	Attachments []Attachment
}

// Callbacks receive the progress of one streaming call.
//
// OnToken is invoked in transport order. Exactly one of OnComplete or OnError
// is invoked last. OnActivity reports raw transport progress, even when no
// token was produced, and is optional.
type Callbacks struct {
	OnToken    func(token string)
	OnComplete func(fullText string)
	OnError    func(err error)
	OnActivity func()
}

// Token invokes OnToken when set.
func (c Callbacks) Token(token string) {
	if c.OnToken != nil {
		c.OnToken(token)
	}
}

// Complete invokes OnComplete when set.
func (c Callbacks) Complete(fullText string) {
	if c.OnComplete != nil {
		c.OnComplete(fullText)
	}
}

// Fail invokes OnError when set.
func (c Callbacks) Fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Activity invokes OnActivity when set.
func (c Callbacks) Activity() {
	if c.OnActivity != nil {
		c.OnActivity()
	}
}

// Provider is a streaming chat adapter.
type Provider interface {
	ID() ProviderID

	// Stream sends req and reports progress through cb. It returns only after
	// a terminal callback has been invoked. Cancelling ctx aborts the transport.
	Stream(ctx context.Context, req *Request, cb Callbacks)
}

// Resetter is implemented by adapters that keep conversation state.
type Resetter interface {
	Reset()
}
