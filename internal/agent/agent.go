// Package agent provides the answer and progress text producers backed by
// LLM providers.
package agent

import (
	"context"

	"github.com/pleszr/skyegpt/internal/model"
)

// ProgressTextCount is how many progress strings a progress producer returns.
const ProgressTextCount = 5

// AnswerStream is an in-flight answer. Recv returns the next text fragment,
// or io.EOF once the answer is complete. After io.EOF, Delta exposes the
// turn's new request/response messages for persistence.
type AnswerStream interface {
	Recv() (string, error)
	Delta() *model.Conversation
}

// AnswerProducer generates answers grounded in retrieved documents. The
// history argument is a read-only snapshot of the prior conversation; the
// producer never mutates it. Stream may return a
// *apperr.UsageLimitExceededError or *apperr.ResponseGenerationError,
// directly or from Recv.
type AnswerProducer interface {
	Stream(ctx context.Context, question string, history *model.Conversation) (AnswerStream, error)
}

// ProgressTextProducer generates short human-readable "working on it"
// strings for a question. Failures are non-fatal to the caller.
type ProgressTextProducer interface {
	Generate(ctx context.Context, question string) ([]string, error)
}
