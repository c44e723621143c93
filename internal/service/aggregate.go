package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/pleszr/skyegpt/internal/agent"
	"github.com/pleszr/skyegpt/internal/history"
	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/pkg/logger"
)

// AggregateService returns the full answer in one message instead of a
// stream. Used by the evaluation endpoints, optionally together with the
// tool context recorded during the turn.
type AggregateService struct {
	answers agent.AnswerProducer
	history *history.Manager
	logger  *logger.Logger
}

// NewAggregateService creates the aggregate service.
func NewAggregateService(answers agent.AnswerProducer, hist *history.Manager, log *logger.Logger) *AggregateService {
	return &AggregateService{
		answers: answers,
		history: hist,
		logger:  log,
	}
}

// AggregatedAnswer is a full answer plus the tool context gathered while
// generating it.
type AggregatedAnswer struct {
	GeneratedAnswer string                 `json:"generated_answer"`
	Context         []history.ContextEntry `json:"curr_context,omitempty"`
}

// Answer generates the complete answer for a question, persisting the turn
// like the streaming path does. When withContext is set, the response also
// carries the conversation's recorded tool context.
func (s *AggregateService) Answer(ctx context.Context, question, conversationID string, withContext bool) (*AggregatedAnswer, error) {
	conv, err := s.history.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	snapshot := &model.Conversation{
		ID:           conv.ID,
		Messages:     conv.Snapshot(),
		CreatedAt:    conv.CreatedAt,
		LastModified: conv.LastModified,
	}

	answer, err := s.answers.Stream(ctx, question, snapshot)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for {
		chunk, err := answer.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		sb.WriteString(chunk)
	}

	if err := s.history.Extend(ctx, conversationID, answer.Delta()); err != nil {
		return nil, err
	}

	s.logger.Info("aggregated answer generated", zap.String("conversation_id", conversationID))

	out := &AggregatedAnswer{GeneratedAnswer: sb.String()}
	if withContext {
		out.Context = s.history.Context(conversationID)
	}
	return out, nil
}
