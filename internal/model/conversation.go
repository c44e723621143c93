// Package model defines data structures for conversations, messages and
// streamed events.
package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxHistory is the maximum number of messages a conversation retains.
// Older messages are dropped FIFO once the limit is exceeded.
const MaxHistory = 20

// Conversation is a conversation thread with the agent: its message history,
// feedback entries and timestamps. Message order is insertion order and is
// chronological.
type Conversation struct {
	ID           string     `json:"id"`
	Messages     []Message  `json:"messages"`
	Feedbacks    []Feedback `json:"feedbacks"`
	CreatedAt    time.Time  `json:"created_at"`
	LastModified time.Time  `json:"last_modified"`
}

// NewConversation returns an empty, unpersisted conversation carrying id.
// An empty id gets a fresh UUID.
func NewConversation(id string) *Conversation {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	return &Conversation{
		ID:           id,
		CreatedAt:    now,
		LastModified: now,
	}
}

// Extend appends the delta's messages, trims the history to MaxHistory
// (dropping oldest first) and bumps LastModified.
func (c *Conversation) Extend(delta *Conversation) {
	c.Messages = append(c.Messages, delta.Messages...)
	c.enforceMaxHistory()
	c.LastModified = time.Now().UTC()
}

func (c *Conversation) enforceMaxHistory() {
	if len(c.Messages) > MaxHistory {
		c.Messages = c.Messages[len(c.Messages)-MaxHistory:]
	}
}

// AddFeedback appends a feedback entry.
func (c *Conversation) AddFeedback(f Feedback) {
	c.Feedbacks = append(c.Feedbacks, f)
}

// ArchiveToolOutput archives tool return payloads across all messages.
// Idempotent.
func (c *Conversation) ArchiveToolOutput() {
	for i := range c.Messages {
		c.Messages[i].Archive()
	}
}

// Snapshot returns a copy of the message history. Callers may read it while
// the conversation is mutated by a later turn.
func (c *Conversation) Snapshot() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}
