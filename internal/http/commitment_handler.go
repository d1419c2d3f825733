package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/proof-of-ship/internal/application"
)

// CommitmentService is the subset of application.CommitmentService used by the handler.
type CommitmentService interface {
	Connect(ctx context.Context, params application.ConnectParams) (application.Commitment, error)
	UpdateCutoff(ctx context.Context, input application.CutoffInput) (application.Commitment, error)
	Get(ctx context.Context) (application.Commitment, error)
}

type CommitmentHandler struct {
	service   CommitmentService
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewCommitmentHandler(service CommitmentService, now func() time.Time, logger *slog.Logger) *CommitmentHandler {
	if now == nil {
		now = time.Now
	}
	logger = defaultLogger(logger)
	return &CommitmentHandler{
		service:   service,
		now:       now,
		responder: newResponder(logger),
		logger:    logger,
	}
}

func (h *CommitmentHandler) log(r *http.Request, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(r.Context(), h.logger, "CommitmentHandler", operation, attrs...)
}

func (h *CommitmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	logger := h.log(r, "Get")
	commitment, err := h.service.Get(r.Context())
	if err != nil {
		logger.WarnContext(r.Context(), "commitment lookup failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newCommitmentDTO(commitment, h.now()))
}

func (h *CommitmentHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, statusForDecodeError(err), err)
		return
	}

	logger := h.log(r, "Connect", "repository", req.Repository)
	commitment, err := h.service.Connect(r.Context(), application.ConnectParams{
		Repository: req.Repository,
		Cutoff:     req.cutoffRequest.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "connect failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "repository connected", "commitment_id", commitment.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newCommitmentDTO(commitment, h.now()))
}

func (h *CommitmentHandler) UpdateCutoff(w http.ResponseWriter, r *http.Request) {
	var req cutoffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.writeError(r.Context(), w, statusForDecodeError(err), err)
		return
	}

	logger := h.log(r, "UpdateCutoff")
	commitment, err := h.service.UpdateCutoff(r.Context(), req.toInput())
	if err != nil {
		logger.WarnContext(r.Context(), "cutoff update failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "cutoff updated", "rule", commitment.Rule.Describe())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newCommitmentDTO(commitment, h.now()))
}

func statusForDecodeError(err error) int {
	if errors.Is(err, errRequestBodyTooBig) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
