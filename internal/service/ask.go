// Package service provides business logic for the question-answering API.
package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/internal/stream"
	"github.com/pleszr/skyegpt/pkg/logger"
)

// AskService fronts the streaming answer path.
type AskService struct {
	multiplexer *stream.Multiplexer
	logger      *logger.Logger
}

// NewAskService creates the ask service.
func NewAskService(mux *stream.Multiplexer, log *logger.Logger) *AskService {
	return &AskService{
		multiplexer: mux,
		logger:      log,
	}
}

// CreateConversation returns a fresh conversation id. The conversation
// itself materializes on first use; nothing is persisted here.
func (s *AskService) CreateConversation() string {
	id := uuid.New().String()
	s.logger.Info("created conversation id", zap.String("conversation_id", id))
	return id
}

// StreamAnswer runs the answer turn and returns the merged event sequence.
// The channel closes once both producers complete; terminal failures arrive
// as error events on the channel.
func (s *AskService) StreamAnswer(ctx context.Context, question, conversationID string) <-chan model.StreamEvent {
	s.logger.Info("answer stream requested", zap.String("conversation_id", conversationID))
	return s.multiplexer.Run(ctx, question, conversationID)
}
