// Package store provides durable persistence for conversations behind a
// small upsert/find interface.
package store

import (
	"context"
	"time"

	"github.com/pleszr/skyegpt/internal/model"
)

// ConversationStore is the persistence interface for conversations.
// FindByID returns (nil, nil) when the conversation does not exist; absence
// is a valid initial state, not an error.
type ConversationStore interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	Upsert(ctx context.Context, id string, conv *model.Conversation) error
	FindWithFeedbackSince(ctx context.Context, since time.Time) ([]model.Conversation, error)
}
