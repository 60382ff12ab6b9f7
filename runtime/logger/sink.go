package logger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/types"
)

// DefaultSinkCapacity is the number of entries a Sink retains when no capacity is given.
const DefaultSinkCapacity = 500

// Sink retains the most recent log records in memory so they can be shown in a log panel.
// When full, the oldest entry is dropped.
type Sink struct {
	mu       sync.Mutex
	entries  []types.LogEntry
	start    int
	count    int
	capacity int
}

// NewSink creates a sink holding at most capacity entries.
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultSinkCapacity
	}
	return &Sink{
		entries:  make([]types.LogEntry, capacity),
		capacity: capacity,
	}
}

// Append stores an entry, evicting the oldest when the sink is full.
func (s *Sink) Append(entry types.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := (s.start + s.count) % s.capacity
	s.entries[idx] = entry
	if s.count < s.capacity {
		s.count++
		return
	}
	s.start = (s.start + 1) % s.capacity
}

// Entries returns a copy of the retained entries, oldest first.
func (s *Sink) Entries() []types.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.LogEntry, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.entries[(s.start+i)%s.capacity]
	}
	return out
}

// Len returns the number of retained entries.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Clear drops all retained entries.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = 0
	s.count = 0
	clear(s.entries)
}

// teeHandler forwards every record to inner and mirrors it into a Sink.
type teeHandler struct {
	inner slog.Handler
	sink  *Sink
	attrs []slog.Attr
	group string
}

func newTeeHandler(inner slog.Handler, sink *Sink) *teeHandler {
	return &teeHandler{inner: inner, sink: sink}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

//nolint:gocritic // slog.Record is passed by value per slog.Handler interface contract
func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := types.LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
	}
	data := make(map[string]any, r.NumAttrs()+len(h.attrs))
	add := func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		switch a.Key {
		case string(ContextKeyComponent):
			entry.Source = a.Value.String()
		case string(ContextKeyProvider):
			if entry.Source == "" {
				entry.Source = a.Value.String()
			}
		}
		data[key] = a.Value.Any()
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)
	if entry.Source == "" {
		entry.Source = "core"
	}
	if len(data) > 0 {
		entry.Data = data
	}
	h.sink.Append(entry)

	return h.inner.Handle(ctx, r)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &teeHandler{inner: h.inner.WithAttrs(attrs), sink: h.sink, attrs: merged, group: h.group}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &teeHandler{inner: h.inner.WithGroup(name), sink: h.sink, attrs: h.attrs, group: group}
}
