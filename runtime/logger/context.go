package logger

import (
	"context"
)

type contextKey string

// Context keys whose values are added to every record logged with the context.
const (
	ContextKeyProvider       contextKey = "provider"
	ContextKeyModel          contextKey = "model"
	ContextKeyComponent      contextKey = "component"
	ContextKeySessionID      contextKey = "session_id"
	ContextKeyRequestID      contextKey = "request_id"
	ContextKeyConversationID contextKey = "conversation_id"
)

// allContextKeys fixes the order in which context fields appear in a record.
var allContextKeys = []contextKey{
	ContextKeyProvider,
	ContextKeyModel,
	ContextKeyComponent,
	ContextKeySessionID,
	ContextKeyRequestID,
	ContextKeyConversationID,
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

// WithProvider tags records with the provider id ("claude" or "gemini").
func WithProvider(ctx context.Context, provider string) context.Context {
	return withValue(ctx, ContextKeyProvider, provider)
}

// WithModel tags records with the model id.
func WithModel(ctx context.Context, model string) context.Context {
	return withValue(ctx, ContextKeyModel, model)
}

// WithComponent tags records with the emitting component. The log sink uses
// it as the entry source.
func WithComponent(ctx context.Context, component string) context.Context {
	return withValue(ctx, ContextKeyComponent, component)
}

// WithSessionID tags records with a live session id.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withValue(ctx, ContextKeySessionID, sessionID)
}

// WithRequestID tags records with the id of one supervised stream.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withValue(ctx, ContextKeyRequestID, requestID)
}

// WithConversationID tags records with the conversation they belong to.
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return withValue(ctx, ContextKeyConversationID, conversationID)
}

// LoggingFields sets several context fields at once with WithLoggingContext.
type LoggingFields struct {
	Provider       string
	Model          string
	Component      string
	SessionID      string
	RequestID      string
	ConversationID string
}

func (f *LoggingFields) pairs() [6]struct {
	key   contextKey
	value string
} {
	return [6]struct {
		key   contextKey
		value string
	}{
		{ContextKeyProvider, f.Provider},
		{ContextKeyModel, f.Model},
		{ContextKeyComponent, f.Component},
		{ContextKeySessionID, f.SessionID},
		{ContextKeyRequestID, f.RequestID},
		{ContextKeyConversationID, f.ConversationID},
	}
}

// WithLoggingContext stores every non-empty field of fields in ctx.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	for _, p := range fields.pairs() {
		ctx = withValue(ctx, p.key, p.value)
	}
	return ctx
}

// ExtractLoggingFields reads the logging fields stored in ctx.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	return LoggingFields{
		Provider:       stringValue(ctx, ContextKeyProvider),
		Model:          stringValue(ctx, ContextKeyModel),
		Component:      stringValue(ctx, ContextKeyComponent),
		SessionID:      stringValue(ctx, ContextKeySessionID),
		RequestID:      stringValue(ctx, ContextKeyRequestID),
		ConversationID: stringValue(ctx, ContextKeyConversationID),
	}
}

func stringValue(ctx context.Context, key contextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}
