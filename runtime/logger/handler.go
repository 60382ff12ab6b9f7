package logger

import (
	"context"
	"log/slog"
)

// contextHandler copies the logging fields stored in a context onto each
// record and redacts credentials from string attributes before the inner
// handler sees them.
type contextHandler struct {
	inner slog.Handler
}

func newContextHandler(inner slog.Handler) *contextHandler {
	return &contextHandler{inner: inner}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

//nolint:gocritic // slog.Record is passed by value per slog.Handler interface contract
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, RedactSensitiveData(r.Message), r.PC)

	if ctx != nil {
		for _, key := range allContextKeys {
			if v := stringValue(ctx, key); v != "" {
				out.AddAttrs(slog.String(string(key), v))
			}
		}
	}

	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &contextHandler{inner: h.inner.WithAttrs(redacted)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}

// redactAttr scrubs string values and errors. Other kinds pass through.
func redactAttr(a slog.Attr) slog.Attr {
	switch v := a.Value.Resolve(); {
	case v.Kind() == slog.KindString:
		return slog.String(a.Key, RedactSensitiveData(v.String()))
	case v.Kind() == slog.KindAny:
		if err, ok := v.Any().(error); ok && err != nil {
			return slog.String(a.Key, RedactSensitiveData(err.Error()))
		}
	}
	return a
}
