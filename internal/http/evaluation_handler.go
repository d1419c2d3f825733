package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/proof-of-ship/internal/application"
)

// EvaluationService is the subset of application.EvaluationService used by the handler.
type EvaluationService interface {
	Evaluate(ctx context.Context) (application.EvaluationResult, error)
	Scorecard(ctx context.Context) (application.Scorecard, error)
}

type EvaluationHandler struct {
	service   EvaluationService
	responder responder
	logger    *slog.Logger
}

func NewEvaluationHandler(service EvaluationService, logger *slog.Logger) *EvaluationHandler {
	logger = defaultLogger(logger)
	return &EvaluationHandler{
		service:   service,
		responder: newResponder(logger),
		logger:    logger,
	}
}

func (h *EvaluationHandler) log(r *http.Request, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(r.Context(), h.logger, "EvaluationHandler", operation, attrs...)
}

func (h *EvaluationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	logger := h.log(r, "Evaluate")
	result, err := h.service.Evaluate(r.Context())
	if err != nil {
		logger.WarnContext(r.Context(), "evaluation failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	loc := result.Commitment.Rule.Location
	h.responder.writeJSON(r.Context(), w, http.StatusOK, evaluationResponse{
		EvaluatedAt:       result.EvaluatedAt,
		ReleaseCount:      result.ReleaseCount,
		InvalidTagPattern: result.InvalidTagPattern,
		Weeks:             newWeekDTOs(result.Weeks, loc),
	})
}

func (h *EvaluationHandler) Scorecard(w http.ResponseWriter, r *http.Request) {
	logger := h.log(r, "Scorecard")
	card, err := h.service.Scorecard(r.Context())
	if err != nil {
		logger.WarnContext(r.Context(), "scorecard failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, scorecardResponse{
		Commitment:  newCommitmentDTO(card.Commitment, card.GeneratedAt),
		GeneratedAt: card.GeneratedAt,
		Weeks:       newWeekDTOs(card.Weeks, card.Commitment.Rule.Location),
		Summary:     newSummaryDTO(card.Summary),
	})
}
