package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleszr/skyegpt/internal/agent"
	"github.com/pleszr/skyegpt/internal/apperr"
	"github.com/pleszr/skyegpt/internal/history"
	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/internal/store"
	"github.com/pleszr/skyegpt/pkg/logger"
)

type fakeAnswerStream struct {
	chunks  []string
	err     error
	delta   *model.Conversation
	blockOn <-chan struct{}
	i       int
}

func (s *fakeAnswerStream) Recv() (string, error) {
	if s.blockOn != nil {
		<-s.blockOn
	}
	if s.i < len(s.chunks) {
		chunk := s.chunks[s.i]
		s.i++
		return chunk, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeAnswerStream) Delta() *model.Conversation { return s.delta }

type fakeAnswerProducer struct {
	stream    *fakeAnswerStream
	streamErr error
}

func (p *fakeAnswerProducer) Stream(ctx context.Context, question string, conv *model.Conversation) (agent.AnswerStream, error) {
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	if p.stream.delta == nil {
		delta := model.NewConversation(conv.ID)
		delta.Messages = []model.Message{
			model.NewRequestMessage(model.UserPromptPart(question)),
			model.NewResponseMessage(model.TextPart("answer")),
		}
		p.stream.delta = delta
	}
	return p.stream, nil
}

type fakeProgressProducer struct {
	texts []string
	err   error
}

func (p *fakeProgressProducer) Generate(ctx context.Context, question string) ([]string, error) {
	return p.texts, p.err
}

func collect(ch <-chan model.StreamEvent) []model.StreamEvent {
	var out []model.StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func byType(events []model.StreamEvent, t model.StreamEventType) []model.StreamEvent {
	var out []model.StreamEvent
	for _, ev := range events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestMultiplexer(answers agent.AnswerProducer, progress agent.ProgressTextProducer) (*Multiplexer, *store.MemoryStore) {
	st := store.NewMemoryStore()
	hist := history.NewManager(st, logger.NewNop())
	return NewMultiplexer(answers, progress, hist, logger.NewNop()), st
}

func TestRunMergesBothProducers(t *testing.T) {
	answers := &fakeAnswerProducer{stream: &fakeAnswerStream{chunks: []string{"The ", "answer ", "is 42."}}}
	progress := &fakeProgressProducer{texts: []string{"Reading the docs", "Thinking"}}
	mux, _ := newTestMultiplexer(answers, progress)

	events := collect(mux.Run(context.Background(), "question", "conv-1"))

	require.Len(t, events, 4)

	progressEvents := byType(events, model.EventProgressText)
	require.Len(t, progressEvents, 1)
	var texts []string
	require.NoError(t, json.Unmarshal([]byte(progressEvents[0].Data), &texts))
	assert.Equal(t, []string{"Reading the docs", "Thinking"}, texts)

	chunkEvents := byType(events, model.EventAnswerChunk)
	require.Len(t, chunkEvents, 3)
	assert.Equal(t, "The ", chunkEvents[0].Data)
	assert.Equal(t, "answer ", chunkEvents[1].Data)
	assert.Equal(t, "is 42.", chunkEvents[2].Data)

	assert.Empty(t, byType(events, model.EventError))
}

func TestRunPersistsTurnOnCompletion(t *testing.T) {
	answers := &fakeAnswerProducer{stream: &fakeAnswerStream{chunks: []string{"hello"}}}
	mux, st := newTestMultiplexer(answers, &fakeProgressProducer{texts: []string{"working"}})

	collect(mux.Run(context.Background(), "question", "conv-1"))

	stored, err := st.FindByID(context.Background(), "conv-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, model.MessageKindRequest, stored.Messages[0].Kind)
	assert.Equal(t, model.MessageKindResponse, stored.Messages[1].Kind)
}

func TestRunSurvivesProgressFailure(t *testing.T) {
	answers := &fakeAnswerProducer{stream: &fakeAnswerStream{chunks: []string{"still ", "fine"}}}
	progress := &fakeProgressProducer{err: errors.New("progress model down")}
	mux, _ := newTestMultiplexer(answers, progress)

	events := collect(mux.Run(context.Background(), "question", "conv-1"))

	assert.Empty(t, byType(events, model.EventProgressText))
	assert.Empty(t, byType(events, model.EventError))
	assert.Len(t, byType(events, model.EventAnswerChunk), 2)
}

func TestRunEmitsSingleErrorEventOnMidStreamFailure(t *testing.T) {
	answers := &fakeAnswerProducer{stream: &fakeAnswerStream{
		chunks: []string{"partial ", "answer "},
		err:    &apperr.ResponseGenerationError{Message: "provider hung up"},
	}}
	mux, st := newTestMultiplexer(answers, &fakeProgressProducer{texts: []string{"working"}})

	events := collect(mux.Run(context.Background(), "question", "conv-1"))

	// Chunks already emitted stay delivered.
	assert.Len(t, byType(events, model.EventAnswerChunk), 2)

	errorEvents := byType(events, model.EventError)
	require.Len(t, errorEvents, 1)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(errorEvents[0].Data), &payload))
	assert.Equal(t, apperr.MsgInternalError, payload["detail"])

	// A failed turn is never persisted.
	stored, err := st.FindByID(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRunMapsUsageLimitToItsDetailMessage(t *testing.T) {
	answers := &fakeAnswerProducer{streamErr: &apperr.UsageLimitExceededError{Message: "quota"}}
	mux, _ := newTestMultiplexer(answers, &fakeProgressProducer{texts: []string{"working"}})

	events := collect(mux.Run(context.Background(), "question", "conv-1"))

	errorEvents := byType(events, model.EventError)
	require.Len(t, errorEvents, 1)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(errorEvents[0].Data), &payload))
	assert.Equal(t, apperr.MsgUsageLimitExceeded, payload["detail"])
}

func TestRunCancellationStopsWithoutPersisting(t *testing.T) {
	release := make(chan struct{})
	answers := &fakeAnswerProducer{stream: &fakeAnswerStream{
		chunks:  []string{"never delivered"},
		blockOn: release,
	}}
	mux, st := newTestMultiplexer(answers, &fakeProgressProducer{texts: []string{"working"}})

	ctx, cancel := context.WithCancel(context.Background())
	ch := mux.Run(ctx, "question", "conv-1")

	cancel()
	close(release)

	done := make(chan struct{})
	go func() {
		collect(ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("multiplexer did not shut down after cancellation")
	}

	stored, err := st.FindByID(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRunChannelClosesAfterBothProducers(t *testing.T) {
	answers := &fakeAnswerProducer{stream: &fakeAnswerStream{chunks: []string{"a"}}}
	mux, _ := newTestMultiplexer(answers, &fakeProgressProducer{texts: []string{"p"}})

	ch := mux.Run(context.Background(), "question", "conv-1")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel never closed")
		}
	}
}
