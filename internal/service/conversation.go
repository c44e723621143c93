package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pleszr/skyegpt/internal/history"
	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/pkg/logger"
	"github.com/pleszr/skyegpt/pkg/metrics"
)

// ConversationService retrieves conversations and manages feedback.
type ConversationService struct {
	history *history.Manager
	logger  *logger.Logger
}

// NewConversationService creates the conversation service.
func NewConversationService(hist *history.Manager, log *logger.Logger) *ConversationService {
	return &ConversationService{history: hist, logger: log}
}

// Get returns the stored conversation, or an ObjectNotFoundError when it
// does not exist.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return s.history.Find(ctx, conversationID)
}

// CreateFeedback validates and attaches a feedback entry to an existing
// conversation.
func (s *ConversationService) CreateFeedback(ctx context.Context, conversationID string, vote model.Vote, comment string) (*model.Feedback, error) {
	feedback, err := model.NewFeedback(vote, comment)
	if err != nil {
		return nil, err
	}
	if err := s.history.AddFeedback(ctx, conversationID, feedback); err != nil {
		return nil, err
	}

	metrics.FeedbackTotal.WithLabelValues(string(feedback.Vote)).Inc()
	return &feedback, nil
}

// FindByFeedbackSince returns conversations with feedback created in the
// last withinHours hours.
func (s *ConversationService) FindByFeedbackSince(ctx context.Context, withinHours int) ([]model.Conversation, error) {
	since := time.Now().UTC().Add(-time.Duration(withinHours) * time.Hour)
	s.logger.Info("searching conversations by feedback age",
		zap.Int("within_hours", withinHours),
	)
	return s.history.FindWithFeedbackSince(ctx, since)
}
