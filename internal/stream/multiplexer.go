// Package stream merges the progress and answer producers into one ordered
// event sequence and encodes it for SSE clients.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/pleszr/skyegpt/internal/agent"
	"github.com/pleszr/skyegpt/internal/apperr"
	"github.com/pleszr/skyegpt/internal/history"
	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/pkg/logger"
	"github.com/pleszr/skyegpt/pkg/metrics"
)

// eventBuffer sizes the fan-in channel. Producers block once the consumer
// falls this far behind, which doubles as backpressure on the provider
// stream.
const eventBuffer = 256

// Multiplexer runs the progress and answer producers concurrently and fans
// their output into a single event channel. Per-producer emission order is
// preserved; across producers events interleave first-ready-first-served.
type Multiplexer struct {
	answers  agent.AnswerProducer
	progress agent.ProgressTextProducer
	history  *history.Manager
	logger   *logger.Logger
}

// NewMultiplexer creates a multiplexer over the given producers and history
// manager.
func NewMultiplexer(
	answers agent.AnswerProducer,
	progress agent.ProgressTextProducer,
	hist *history.Manager,
	log *logger.Logger,
) *Multiplexer {
	return &Multiplexer{
		answers:  answers,
		progress: progress,
		history:  hist,
		logger:   log,
	}
}

// Run streams the answer to question within the given conversation. The
// returned channel yields progress_text, answer_chunk and error events and
// is closed once both producers have completed. Terminal failures surface as
// a single error event on the channel, never as an out-of-band panic or
// error return.
//
// Cancelling ctx stops both producers together; a cancelled answer task does
// not persist its turn.
func (m *Multiplexer) Run(ctx context.Context, question, conversationID string) <-chan model.StreamEvent {
	out := make(chan model.StreamEvent, eventBuffer)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		m.produceProgressTexts(ctx, question, out)
	}()
	go func() {
		defer wg.Done()
		m.produceAnswer(ctx, question, conversationID, out)
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// produceProgressTexts emits at most one progress_text event. A failed
// progress producer is logged and swallowed; the answer proceeds without
// progress text.
func (m *Multiplexer) produceProgressTexts(ctx context.Context, question string, out chan<- model.StreamEvent) {
	texts, err := m.progress.Generate(ctx, question)
	if err != nil {
		m.logger.Warn("progress text generation failed", zap.Error(err))
		return
	}

	payload, err := json.Marshal(texts)
	if err != nil {
		m.logger.Warn("progress text serialization failed", zap.Error(err))
		return
	}

	send(ctx, out, model.StreamEvent{Type: model.EventProgressText, Data: string(payload)})
}

// produceAnswer streams answer chunks and, on normal completion, persists
// the turn's delta exactly once. On failure it emits exactly one error
// event; chunks already emitted stay delivered.
func (m *Multiplexer) produceAnswer(ctx context.Context, question, conversationID string, out chan<- model.StreamEvent) {
	conv, err := m.history.Get(ctx, conversationID)
	if err != nil {
		m.fail(ctx, out, conversationID, err)
		return
	}

	snapshot := &model.Conversation{
		ID:           conv.ID,
		Messages:     conv.Snapshot(),
		CreatedAt:    conv.CreatedAt,
		LastModified: conv.LastModified,
	}
	answer, err := m.answers.Stream(ctx, question, snapshot)
	if err != nil {
		m.fail(ctx, out, conversationID, err)
		return
	}

	for {
		chunk, err := answer.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			m.fail(ctx, out, conversationID, err)
			return
		}
		if !send(ctx, out, model.StreamEvent{Type: model.EventAnswerChunk, Data: chunk}) {
			return
		}
		metrics.AnswerChunksTotal.Inc()
	}

	if ctx.Err() != nil {
		// Abandoned consumer: the turn is incomplete, do not persist it.
		return
	}

	if err := m.history.Extend(ctx, conversationID, answer.Delta()); err != nil {
		m.fail(ctx, out, conversationID, err)
		return
	}

	m.logger.Info("answer generation finished", zap.String("conversation_id", conversationID))
}

// fail classifies err and funnels it into the event sequence as one error
// event. Full details are logged server-side only.
func (m *Multiplexer) fail(ctx context.Context, out chan<- model.StreamEvent, conversationID string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	classified := apperr.Classify(err)
	m.logger.Error("answer stream failed",
		zap.String("conversation_id", conversationID),
		zap.String("kind", string(classified.Kind)),
		zap.Error(err),
	)
	metrics.StreamFailuresTotal.WithLabelValues(string(classified.Kind)).Inc()

	payload, marshalErr := json.Marshal(map[string]string{"detail": classified.Detail})
	if marshalErr != nil {
		payload = []byte(`{"detail":"` + apperr.MsgInternalError + `"}`)
	}
	send(ctx, out, model.StreamEvent{Type: model.EventError, Data: string(payload)})
}

// send delivers an event unless the context is cancelled. Returns false when
// the consumer is gone.
func send(ctx context.Context, out chan<- model.StreamEvent, event model.StreamEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
