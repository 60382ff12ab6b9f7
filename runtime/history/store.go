package history

import (
	"context"
	"errors"
	"sync"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/types"
)

var (
	// ErrNotFound is returned when no history exists for a conversation.
	ErrNotFound = errors.New("conversation history not found")

	// ErrInvalidID is returned when a conversation ID is empty.
	ErrInvalidID = errors.New("invalid conversation ID")
)

// Store persists conversation windows between runs.
type Store interface {
	// Load returns the stored messages, or ErrNotFound.
	Load(ctx context.Context, id string) ([]types.ChatMessage, error)

	// Save replaces the stored messages.
	Save(ctx context.Context, id string, msgs []types.ChatMessage) error

	// Delete removes stored messages. Deleting a missing conversation is not an error.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string][]types.ChatMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string][]types.ChatMessage)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, id string) ([]types.ChatMessage, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMessages(msgs), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, id string, msgs []types.ChatMessage) error {
	if id == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[id] = cloneMessages(msgs)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	return nil
}

func cloneMessages(msgs []types.ChatMessage) []types.ChatMessage {
	out := make([]types.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}
