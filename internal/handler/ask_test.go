package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleszr/skyegpt/internal/agent"
	"github.com/pleszr/skyegpt/internal/history"
	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/internal/service"
	"github.com/pleszr/skyegpt/internal/store"
	"github.com/pleszr/skyegpt/internal/stream"
	"github.com/pleszr/skyegpt/pkg/logger"
)

type stubAnswerStream struct {
	chunks []string
	delta  *model.Conversation
	i      int
}

func (s *stubAnswerStream) Recv() (string, error) {
	if s.i < len(s.chunks) {
		chunk := s.chunks[s.i]
		s.i++
		return chunk, nil
	}
	return "", io.EOF
}

func (s *stubAnswerStream) Delta() *model.Conversation { return s.delta }

type stubAnswerProducer struct {
	chunks []string
}

func (p *stubAnswerProducer) Stream(ctx context.Context, question string, conv *model.Conversation) (agent.AnswerStream, error) {
	delta := model.NewConversation(conv.ID)
	delta.Messages = []model.Message{
		model.NewRequestMessage(model.UserPromptPart(question)),
		model.NewResponseMessage(model.TextPart(strings.Join(p.chunks, ""))),
	}
	return &stubAnswerStream{chunks: p.chunks, delta: delta}, nil
}

type stubProgressProducer struct {
	texts []string
}

func (p *stubProgressProducer) Generate(ctx context.Context, question string) ([]string, error) {
	return p.texts, nil
}

type testEnv struct {
	router *chi.Mux
	store  *store.MemoryStore
	hist   *history.Manager
}

func newTestEnv(chunks, progress []string) *testEnv {
	log := logger.NewNop()
	st := store.NewMemoryStore()
	hist := history.NewManager(st, log)

	answers := &stubAnswerProducer{chunks: chunks}
	mux := stream.NewMultiplexer(answers, &stubProgressProducer{texts: progress}, hist, log)

	askSvc := service.NewAskService(mux, log)
	aggSvc := service.NewAggregateService(answers, hist, log)
	convSvc := service.NewConversationService(hist, log)

	askHandler := NewAskHandler(askSvc, convSvc, log)
	evalHandler := NewEvaluateHandler(aggSvc, convSvc, log)

	r := chi.NewRouter()
	r.Route("/ask", func(r chi.Router) {
		r.Post("/conversation", askHandler.CreateConversation)
		r.Get("/conversation/{id}", askHandler.GetConversation)
		r.Post("/response/stream", askHandler.StreamResponse)
		r.Post("/feedback", askHandler.CreateFeedback)
	})
	r.Route("/evaluate", func(r chi.Router) {
		r.Post("/response", evalHandler.Response)
		r.Get("/conversations", evalHandler.Conversations)
	})

	return &testEnv{router: r, store: st, hist: hist}
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// sseEvents parses "event: X\ndata: Y\n\n" blocks from an SSE body.
func sseEvents(body string) []model.StreamEvent {
	var out []model.StreamEvent
	for _, block := range strings.Split(body, "\n\n") {
		if block == "" {
			continue
		}
		var ev model.StreamEvent
		for _, line := range strings.Split(block, "\n") {
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				ev.Type = model.StreamEventType(v)
			}
			if v, ok := strings.CutPrefix(line, "data: "); ok {
				ev.Data = v
			}
		}
		out = append(out, ev)
	}
	return out
}

func TestCreateConversation(t *testing.T) {
	env := newTestEnv(nil, nil)

	rec := postJSON(t, env.router, "/ask/conversation", nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp CreateConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	_, err := uuid.Parse(resp.ConversationID)
	assert.NoError(t, err)
}

func TestStreamResponse(t *testing.T) {
	env := newTestEnv([]string{"The answer\n", "is 42."}, []string{"Looking it up"})
	conversationID := uuid.New().String()

	rec := postJSON(t, env.router, "/ask/response/stream", QueryRequest{
		ConversationID: conversationID,
		Query:          "what is the answer?",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, stream.MediaTypeSSE, rec.Header().Get("Content-Type"))

	events := sseEvents(rec.Body.String())
	require.Len(t, events, 3)

	var chunks []string
	for _, ev := range events {
		switch ev.Type {
		case model.EventAnswerChunk:
			chunks = append(chunks, ev.Data)
		case model.EventProgressText:
			assert.JSONEq(t, `["Looking it up"]`, ev.Data)
		case model.EventError:
			t.Fatalf("unexpected error event: %s", ev.Data)
		}
	}
	// Newlines inside a chunk are escaped on the wire.
	assert.Equal(t, []string{`The answer\n`, "is 42."}, chunks)

	stored, err := env.store.FindByID(context.Background(), conversationID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Messages, 2)
}

func TestStreamResponseValidation(t *testing.T) {
	env := newTestEnv(nil, nil)

	tests := []struct {
		name string
		req  QueryRequest
	}{
		{"missing conversation id", QueryRequest{Query: "q"}},
		{"malformed conversation id", QueryRequest{ConversationID: "not-a-uuid", Query: "q"}},
		{"empty query", QueryRequest{ConversationID: uuid.New().String()}},
		{"oversized query", QueryRequest{ConversationID: uuid.New().String(), Query: strings.Repeat("x", 4001)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, env.router, "/ask/response/stream", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateFeedback(t *testing.T) {
	env := newTestEnv([]string{"answer"}, nil)
	conversationID := uuid.New().String()

	// Materialize the conversation with one turn.
	rec := postJSON(t, env.router, "/ask/response/stream", QueryRequest{
		ConversationID: conversationID,
		Query:          "q",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, env.router, "/ask/feedback", FeedbackRequest{
		ConversationID: conversationID,
		Vote:           "negative",
		Comment:        "wrong link",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var fb model.Feedback
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fb))
	assert.Equal(t, model.VoteNegative, fb.Vote)

	stored, err := env.store.FindByID(context.Background(), conversationID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Feedbacks, 1)
}

func TestCreateFeedbackRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(nil, nil)
	conversationID := uuid.New().String()

	tests := []struct {
		name       string
		req        FeedbackRequest
		wantStatus int
	}{
		{
			name:       "not specified without comment",
			req:        FeedbackRequest{ConversationID: conversationID, Vote: "not_specified"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown vote",
			req:        FeedbackRequest{ConversationID: conversationID, Vote: "maybe"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing conversation",
			req:        FeedbackRequest{ConversationID: conversationID, Vote: "positive"},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, env.router, "/ask/feedback", tt.req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetConversation(t *testing.T) {
	env := newTestEnv([]string{"answer"}, nil)
	conversationID := uuid.New().String()

	rec := postJSON(t, env.router, "/ask/response/stream", QueryRequest{
		ConversationID: conversationID,
		Query:          "q",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/ask/conversation/%s", conversationID), nil)
	getRec := httptest.NewRecorder()
	env.router.ServeHTTP(getRec, req)

	require.Equal(t, http.StatusOK, getRec.Code)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &conv))
	assert.Equal(t, conversationID, conv.ID)
	assert.Len(t, conv.Messages, 2)
}

func TestGetConversationNotFound(t *testing.T) {
	env := newTestEnv(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ask/conversation/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Error: Conversation not found", body["detail"])
}
