package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pleszr/skyegpt/internal/model"
)

// MemoryStore is a mutex-protected in-memory ConversationStore. It backs
// tests and local runs without a NATS server; it is a cache-grade store, not
// a durable record.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]byte)}
}

// FindByID returns the stored conversation or (nil, nil) when absent.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	data, ok := s.conversations[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Upsert stores the full conversation document under id.
func (s *MemoryStore) Upsert(ctx context.Context, id string, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conversations[id] = data
	s.mu.Unlock()
	return nil
}

// FindWithFeedbackSince returns conversations with feedback created at or
// after since.
func (s *MemoryStore) FindWithFeedbackSince(ctx context.Context, since time.Time) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Conversation
	for _, data := range s.conversations {
		var conv model.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			return nil, err
		}
		if conv.HasFeedbackSince(since) {
			out = append(out, conv)
		}
	}
	return out, nil
}
