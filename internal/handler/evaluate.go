package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/pleszr/skyegpt/internal/apperr"
	"github.com/pleszr/skyegpt/internal/middleware"
	"github.com/pleszr/skyegpt/internal/service"
	"github.com/pleszr/skyegpt/pkg/logger"
)

// EvaluateHandler handles the non-streaming evaluation endpoints.
type EvaluateHandler struct {
	aggregateService    *service.AggregateService
	conversationService *service.ConversationService
	logger              *logger.Logger
}

// NewEvaluateHandler creates a new evaluate handler.
func NewEvaluateHandler(aggSvc *service.AggregateService, convSvc *service.ConversationService, log *logger.Logger) *EvaluateHandler {
	return &EvaluateHandler{
		aggregateService:    aggSvc,
		conversationService: convSvc,
		logger:              log,
	}
}

// Response handles POST /evaluate/response: the full answer in one message,
// together with the tool context used to produce it.
func (h *EvaluateHandler) Response(w http.ResponseWriter, r *http.Request) {
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

	answer, err := h.aggregateService.Answer(ctx, req.Query, req.ConversationID, true)
	if err != nil {
		classified := apperr.Classify(err)
		h.logger.Error("aggregated answer failed",
			zap.String("conversation_id", req.ConversationID),
			zap.String("kind", string(classified.Kind)),
			zap.Error(err),
		)
		writeError(w, classified.Status, classified.Detail)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// Conversations handles GET /evaluate/conversations?feedback_within_hours=N.
func (h *EvaluateHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	withinHours := 24
	if v := r.URL.Query().Get("feedback_within_hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "feedback_within_hours must be a positive integer")
			return
		}
		withinHours = parsed
	}

	convs, err := h.conversationService.FindByFeedbackSince(ctx, withinHours)
	if err != nil {
		classified := apperr.Classify(err)
		h.logger.Error("feedback search failed", zap.Error(err))
		writeError(w, classified.Status, classified.Detail)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": convs,
		"total":         len(convs),
	})
}
