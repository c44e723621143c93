// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pleszr/skyegpt/internal/apperr"
	"github.com/pleszr/skyegpt/internal/middleware"
	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/internal/service"
	"github.com/pleszr/skyegpt/internal/stream"
	"github.com/pleszr/skyegpt/pkg/logger"
	"github.com/pleszr/skyegpt/pkg/metrics"
)

// AskHandler handles the conversation and answer-streaming endpoints.
type AskHandler struct {
	askService          *service.AskService
	conversationService *service.ConversationService
	logger              *logger.Logger
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(askSvc *service.AskService, convSvc *service.ConversationService, log *logger.Logger) *AskHandler {
	return &AskHandler{
		askService:          askSvc,
		conversationService: convSvc,
		logger:              log,
	}
}

// QueryRequest is the request for the streaming and aggregated answer
// endpoints.
type QueryRequest struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// CreateConversationResponse carries a freshly generated conversation id.
type CreateConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// FeedbackRequest is the request to attach feedback to a conversation.
type FeedbackRequest struct {
	ConversationID string `json:"conversation_id"`
	Vote           string `json:"vote"`
	Comment        string `json:"comment"`
}

// CreateConversation handles POST /ask/conversation.
func (h *AskHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	id := h.askService.CreateConversation()
	writeJSON(w, http.StatusCreated, CreateConversationResponse{ConversationID: id})
}

// StreamResponse handles POST /ask/response/stream. It streams the merged
// progress/answer event sequence as SSE. Terminal failures arrive as an SSE
// error event; the HTTP status is already committed by then.
func (h *AskHandler) StreamResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateQuery(req.Query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	stream.WriteHeaders(w)
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	start := time.Now()
	status := "success"

	events := h.askService.StreamAnswer(ctx, req.Query, req.ConversationID)
	for event := range events {
		if event.Type == model.EventError {
			status = "error"
		}
		fmt.Fprint(w, stream.FormatEvent(event))
		flusher.Flush()
	}

	if ctx.Err() != nil {
		status = "disconnected"
		h.logger.Info("SSE client disconnected",
			zap.String("conversation_id", req.ConversationID),
		)
	}
	metrics.RecordAnswerStream(status, time.Since(start).Seconds())
}

// CreateFeedback handles POST /ask/feedback.
func (h *AskHandler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateComment(req.Comment); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feedback, err := h.conversationService.CreateFeedback(ctx, req.ConversationID, model.Vote(req.Vote), req.Comment)
	if err != nil {
		h.respondClassified(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, feedback)
}

// GetConversation handles GET /ask/conversation/{id}.
func (h *AskHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.conversationService.Get(ctx, conversationID)
	if err != nil {
		h.respondClassified(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// respondClassified maps an error through the classifier onto an HTTP
// response. Validation errors keep their message; everything else surfaces
// only the classified detail.
func (h *AskHandler) respondClassified(w http.ResponseWriter, r *http.Request, err error) {
	switch err {
	case model.ErrFeedbackCommentRequired, model.ErrInvalidVote:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	classified := apperr.Classify(err)
	h.logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("kind", string(classified.Kind)),
		zap.Error(err),
	)
	writeError(w, classified.Status, classified.Detail)
}
