// Package history keeps the bounded conversation window owned by a provider
// adapter and persists it through a narrow Store collaborator.
package history

import (
	"sync"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/types"
)

// DefaultLimit is the number of messages retained after each completed exchange.
const DefaultLimit = 20

// Window is an ordered, append-only message list truncated oldest-first.
// Appended messages are never modified. It is safe for concurrent use.
type Window struct {
	mu       sync.RWMutex
	limit    int
	messages []types.ChatMessage
}

// NewWindow creates a window retaining at most limit messages on Truncate.
// A non-positive limit selects DefaultLimit.
func NewWindow(limit int) *Window {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Window{limit: limit}
}

// Limit returns the retention bound.
func (w *Window) Limit() int {
	return w.limit
}

// Append adds messages at the end of the window.
func (w *Window) Append(msgs ...types.ChatMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
}

// Truncate drops the oldest messages beyond the limit.
func (w *Window) Truncate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if excess := len(w.messages) - w.limit; excess > 0 {
		kept := make([]types.ChatMessage, w.limit)
		copy(kept, w.messages[excess:])
		w.messages = kept
	}
}

// Messages returns a copy of the window contents, oldest first.
func (w *Window) Messages() []types.ChatMessage {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]types.ChatMessage, len(w.messages))
	copy(out, w.messages)
	return out
}

// Len returns the number of messages in the window.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.messages)
}

// Replace swaps the contents for msgs, keeping only the most recent limit.
func (w *Window) Replace(msgs []types.ChatMessage) {
	if excess := len(msgs) - w.limit; excess > 0 {
		msgs = msgs[excess:]
	}
	kept := make([]types.ChatMessage, len(msgs))
	copy(kept, msgs)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = kept
}

// Clear empties the window.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = nil
}
