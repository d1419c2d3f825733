package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/proof-of-ship/internal/release"
	"github.com/example/proof-of-ship/internal/week"
)

// CommitmentService validates and stores the connected repository and its cutoff rule.
type CommitmentService struct {
	commitments CommitmentRepository
	verdicts    VerdictRepository
	idGenerator func() string
	now         func() time.Time
	guard       *WriteGuard
	logger      *slog.Logger
}

// NewCommitmentService constructs a commitment service with the provided dependencies.
func NewCommitmentService(commitments CommitmentRepository, verdicts VerdictRepository, idGenerator func() string, now func() time.Time) *CommitmentService {
	return NewCommitmentServiceWithLogger(commitments, verdicts, idGenerator, now, nil, nil)
}

// NewCommitmentServiceWithLogger constructs a commitment service with a
// specified logger and the guard shared with the other services.
func NewCommitmentServiceWithLogger(commitments CommitmentRepository, verdicts VerdictRepository, idGenerator func() string, now func() time.Time, guard *WriteGuard, logger *slog.Logger) *CommitmentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CommitmentService{
		commitments: commitments,
		verdicts:    verdicts,
		idGenerator: idGenerator,
		now:         now,
		guard:       orNewGuard(guard),
		logger:      defaultLogger(logger),
	}
}

func (s *CommitmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CommitmentService", operation, attrs...)
}

// Connect validates the repository reference and cutoff rule and replaces the
// stored commitment. Week records are cleared when the repository changes.
func (s *CommitmentService) Connect(ctx context.Context, params ConnectParams) (commitment Commitment, err error) {
	if s == nil {
		err = fmt.Errorf("CommitmentService is nil")
		return
	}
	if s.commitments == nil {
		err = fmt.Errorf("commitment repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Connect", "repository_input", strings.TrimSpace(params.Repository))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to connect repository", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("commitment_id", commitment.ID, "repository", commitment.Repository.String()).InfoContext(ctx, "repository connected")
	}()

	vErr := &ValidationError{}
	repo, repoErr := release.ParseRepository(params.Repository)
	if repoErr != nil {
		vErr.add("repository", "must be a GitHub repository URL or owner/name")
	}
	rule, ruleErr := buildRule(params.Cutoff)
	if ruleErr != nil {
		vErr.merge(ruleErr)
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	defer s.guard.exclusive()()

	now := s.now()
	commitment = Commitment{
		ID:         s.idGenerator(),
		Repository: repo,
		Rule:       rule,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	existing, getErr := s.commitments.GetCommitment(ctx)
	switch {
	case getErr == nil:
		if sameRepository(existing.Repository, repo) {
			commitment.ID = existing.ID
			commitment.CreatedAt = existing.CreatedAt
		} else if s.verdicts != nil {
			if err = s.verdicts.ClearVerdicts(ctx); err != nil {
				err = mapRepoError(err)
				return
			}
			logger.InfoContext(ctx, "cleared week records of previous repository", "previous_repository", existing.Repository.String())
		}
	case errors.Is(mapRepoError(getErr), ErrNotFound):
	default:
		err = mapRepoError(getErr)
		return
	}

	commitment, err = s.commitments.SaveCommitment(ctx, commitment)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	return
}

// UpdateCutoff replaces the cutoff rule of the stored commitment.
func (s *CommitmentService) UpdateCutoff(ctx context.Context, input CutoffInput) (commitment Commitment, err error) {
	if s == nil {
		err = fmt.Errorf("CommitmentService is nil")
		return
	}
	if s.commitments == nil {
		err = fmt.Errorf("commitment repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateCutoff")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update cutoff", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("cutoff", commitment.Rule.Describe()).InfoContext(ctx, "cutoff updated")
	}()

	defer s.guard.exclusive()()

	var existing Commitment
	existing, err = s.Get(ctx)
	if err != nil {
		return
	}

	rule, fieldErrs := buildRule(input)
	if fieldErrs != nil {
		err = &ValidationError{FieldErrors: fieldErrs}
		return
	}

	updated := existing
	updated.Rule = rule
	updated.UpdatedAt = s.now()

	commitment, err = s.commitments.SaveCommitment(ctx, updated)
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// Get returns the stored commitment or ErrNoCommitment.
func (s *CommitmentService) Get(ctx context.Context) (Commitment, error) {
	if s == nil || s.commitments == nil {
		return Commitment{}, ErrNoCommitment
	}
	return loadCommitment(ctx, s.commitments)
}

func loadCommitment(ctx context.Context, repo CommitmentRepository) (Commitment, error) {
	commitment, err := repo.GetCommitment(ctx)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			return Commitment{}, ErrNoCommitment
		}
		return Commitment{}, err
	}
	return commitment, nil
}

// buildRule validates input, returning per-field messages on failure.
func buildRule(input CutoffInput) (week.Rule, map[string]string) {
	rule, err := week.NewRule(input.DayOfWeek, input.CutoffTime, input.Timezone, input.TagPattern)
	if err == nil {
		return rule, nil
	}
	var rErr *week.RuleError
	if errors.As(err, &rErr) {
		return week.Rule{}, rErr.FieldErrors
	}
	return week.Rule{}, map[string]string{"cutoff": err.Error()}
}

func sameRepository(a, b release.Repository) bool {
	return strings.EqualFold(a.Owner, b.Owner) && strings.EqualFold(a.Name, b.Name)
}
