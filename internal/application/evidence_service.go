package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/example/proof-of-ship/internal/persistence"
	"github.com/example/proof-of-ship/internal/verdict"
	"github.com/example/proof-of-ship/internal/week"
)

const maxNoteLength = 2000

// EvidenceService records manually supplied evidence for a window. It never
// reads the release source, so it keeps working while fetching fails.
type EvidenceService struct {
	commitments CommitmentRepository
	verdicts    VerdictRepository
	now         func() time.Time
	history     int
	guard       *WriteGuard
	logger      *slog.Logger
}

// NewEvidenceService constructs an evidence service with the provided dependencies.
func NewEvidenceService(commitments CommitmentRepository, verdicts VerdictRepository, now func() time.Time) *EvidenceService {
	return NewEvidenceServiceWithLogger(commitments, verdicts, now, week.DefaultHistory, nil, nil)
}

// NewEvidenceServiceWithLogger constructs an evidence service covering history
// completed windows with a specified logger. Pass the guard of the evaluation
// service so evidence writes and passes do not overwrite each other.
func NewEvidenceServiceWithLogger(commitments CommitmentRepository, verdicts VerdictRepository, now func() time.Time, history int, guard *WriteGuard, logger *slog.Logger) *EvidenceService {
	if now == nil {
		now = time.Now
	}
	if history < 0 {
		history = 0
	}
	if history > persistence.RetentionLimit-1 {
		history = persistence.RetentionLimit - 1
	}
	return &EvidenceService{
		commitments: commitments,
		verdicts:    verdicts,
		now:         now,
		history:     history,
		guard:       orNewGuard(guard),
		logger:      defaultLogger(logger),
	}
}

func (s *EvidenceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EvidenceService", operation, attrs...)
}

// AttachEvidence writes the evidence link and note of the window starting at
// params.WeekStart. Blank values clear the stored fields.
func (s *EvidenceService) AttachEvidence(ctx context.Context, params EvidenceParams) (result verdict.Verdict, err error) {
	if s == nil {
		err = fmt.Errorf("EvidenceService is nil")
		return
	}
	if s.commitments == nil || s.verdicts == nil {
		err = fmt.Errorf("evidence dependencies not configured")
		return
	}

	logger := s.loggerWith(ctx, "AttachEvidence", "week_start", params.WeekStart.UTC().Format(time.RFC3339))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to attach evidence", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "evidence attached", "status", string(result.Status), "has_evidence", result.HasEvidence())
	}()

	if vErr := validateEvidence(params); vErr.HasErrors() {
		err = vErr
		return
	}

	defer s.guard.shared()()

	var commitment Commitment
	commitment, err = loadCommitment(ctx, s.commitments)
	if err != nil {
		return
	}

	now := s.now()
	window, ok := week.Find(week.Compute(commitment.Rule, now, s.history), params.WeekStart)
	if !ok {
		err = fmt.Errorf("no tracked window starts at %s: %w", params.WeekStart.UTC().Format(time.RFC3339), ErrNotFound)
		return
	}
	defer s.guard.window(window.Start, window.End)()

	var prior *verdict.Verdict
	existing, getErr := s.verdicts.GetVerdict(ctx, window.Start, window.End)
	switch {
	case getErr == nil:
		prior = &existing
	case errors.Is(mapRepoError(getErr), ErrNotFound):
	default:
		err = mapRepoError(getErr)
		return
	}

	result = verdict.AttachEvidence(window, prior, params.EvidenceURL, params.Note, now)
	if err = result.Validate(); err != nil {
		return
	}
	if err = s.verdicts.SaveVerdict(ctx, result); err != nil {
		err = mapRepoError(err)
		return
	}
	return
}

func validateEvidence(params EvidenceParams) *ValidationError {
	vErr := &ValidationError{}
	if params.WeekStart.IsZero() {
		vErr.add("week_start", "is required")
	}
	if raw := strings.TrimSpace(params.EvidenceURL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			vErr.add("evidence_url", "must be an absolute http or https URL")
		}
	}
	if len([]rune(strings.TrimSpace(params.Note))) > maxNoteLength {
		vErr.add("note", fmt.Sprintf("must be at most %d characters", maxNoteLength))
	}
	return vErr
}
