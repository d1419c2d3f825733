package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/proof-of-ship/internal/application"
	"github.com/example/proof-of-ship/internal/verdict"
)

// EvidenceService is the subset of application.EvidenceService used by the handler.
type EvidenceService interface {
	AttachEvidence(ctx context.Context, params application.EvidenceParams) (verdict.Verdict, error)
}

type EvidenceHandler struct {
	service   EvidenceService
	responder responder
	logger    *slog.Logger
}

func NewEvidenceHandler(service EvidenceService, logger *slog.Logger) *EvidenceHandler {
	logger = defaultLogger(logger)
	return &EvidenceHandler{
		service:   service,
		responder: newResponder(logger),
		logger:    logger,
	}
}

func (h *EvidenceHandler) log(r *http.Request, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(r.Context(), h.logger, "EvidenceHandler", operation, attrs...)
}

func (h *EvidenceHandler) Attach(w http.ResponseWriter, r *http.Request) {
	start, ok := WeekStartFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWeekStart)
		return
	}

	var req evidenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, statusForDecodeError(err), err)
		return
	}

	logger := h.log(r, "Attach")
	result, err := h.service.AttachEvidence(r.Context(), application.EvidenceParams{
		WeekStart:   start,
		EvidenceURL: req.EvidenceURL,
		Note:        req.Note,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "attach evidence failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "evidence attached", "status", result.Status)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newVerdictWeekDTO(result, start.Location()))
}

// parseWeekStart accepts an RFC 3339 instant as used in week_start fields.
func parseWeekStart(raw string) (time.Time, error) {
	start, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errInvalidWeekStart
	}
	return start, nil
}
