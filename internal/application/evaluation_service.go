package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/example/proof-of-ship/internal/persistence"
	"github.com/example/proof-of-ship/internal/release"
	"github.com/example/proof-of-ship/internal/verdict"
	"github.com/example/proof-of-ship/internal/week"
)

const tracerName = "github.com/example/proof-of-ship/internal/application"

// EvaluationOptions tunes an EvaluationService.
type EvaluationOptions struct {
	// History is the number of completed windows evaluated next to the current one.
	History int
	// Concurrency bounds how many windows are evaluated at once.
	Concurrency int
	// Guard is shared with the evidence and commitment services; a private
	// guard is used when nil.
	Guard *WriteGuard
}

// DefaultEvaluationOptions returns the options used when none are supplied.
func DefaultEvaluationOptions() EvaluationOptions {
	return EvaluationOptions{History: week.DefaultHistory, Concurrency: 4}
}

// EvaluationService runs evaluation passes and builds the scorecard.
type EvaluationService struct {
	commitments CommitmentRepository
	verdicts    VerdictRepository
	source      release.Source
	now         func() time.Time
	options     EvaluationOptions
	guard       *WriteGuard
	logger      *slog.Logger
}

// NewEvaluationService constructs an evaluation service with the provided dependencies.
func NewEvaluationService(commitments CommitmentRepository, verdicts VerdictRepository, source release.Source, now func() time.Time) *EvaluationService {
	return NewEvaluationServiceWithLogger(commitments, verdicts, source, now, DefaultEvaluationOptions(), nil)
}

// NewEvaluationServiceWithLogger constructs an evaluation service with options and a logger.
func NewEvaluationServiceWithLogger(commitments CommitmentRepository, verdicts VerdictRepository, source release.Source, now func() time.Time, options EvaluationOptions, logger *slog.Logger) *EvaluationService {
	if now == nil {
		now = time.Now
	}
	if options.History < 0 {
		options.History = 0
	}
	if options.History > persistence.RetentionLimit-1 {
		options.History = persistence.RetentionLimit - 1
	}
	if options.Concurrency <= 0 {
		options.Concurrency = 4
	}
	return &EvaluationService{
		commitments: commitments,
		verdicts:    verdicts,
		source:      source,
		now:         now,
		options:     options,
		guard:       orNewGuard(options.Guard),
		logger:      defaultLogger(logger),
	}
}

func (s *EvaluationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EvaluationService", operation, attrs...)
}

// History returns the number of completed windows the service covers.
func (s *EvaluationService) History() int {
	return s.options.History
}

// Evaluate runs one evaluation pass.
//
// The reference instant is read once and every window is derived from it.
// Releases are fetched once before any window is touched; when the fetch fails
// the pass is aborted with *FetchFailedError and no record is written. Each
// window is read and written under its lock in the shared guard.
func (s *EvaluationService) Evaluate(ctx context.Context) (result EvaluationResult, err error) {
	if s == nil {
		err = fmt.Errorf("EvaluationService is nil")
		return
	}
	if s.commitments == nil || s.verdicts == nil || s.source == nil {
		err = fmt.Errorf("evaluation dependencies not configured")
		return
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "evaluation.pass")
	defer span.End()

	logger := s.loggerWith(ctx, "Evaluate")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, ErrorKind(err))
			logger.ErrorContext(ctx, "evaluation pass failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "evaluation pass completed",
			"repository", result.Commitment.Repository.String(),
			"releases", result.ReleaseCount,
			"windows", len(result.Weeks),
		)
	}()

	defer s.guard.shared()()

	var commitment Commitment
	commitment, err = loadCommitment(ctx, s.commitments)
	if err != nil {
		return
	}

	now := s.now()
	windows := week.Compute(commitment.Rule, now, s.options.History)
	span.SetAttributes(
		attribute.String("repository", commitment.Repository.String()),
		attribute.Int("windows", len(windows)),
	)

	var events []release.Event
	events, err = s.fetch(ctx, commitment.Repository)
	if err != nil {
		err = &FetchFailedError{Repository: commitment.Repository, Err: err}
		return
	}

	filter := verdict.CompileTagFilter(commitment.Rule.TagPattern)
	if filter.Invalid() {
		logger.WarnContext(ctx, "ignoring invalid tag pattern", "pattern", filter.Pattern(), "error", filter.Err())
	}

	results := make([]WindowVerdict, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.Concurrency)
	for i, window := range windows {
		g.Go(func() error {
			v, evalErr := s.evaluateWindow(gctx, window, events, filter, now)
			if evalErr != nil {
				return fmt.Errorf("evaluate window starting %s: %w", window.Start.Format(time.RFC3339), evalErr)
			}
			results[i] = WindowVerdict{Window: window, Verdict: &v}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return
	}

	result = EvaluationResult{
		Commitment:        commitment,
		EvaluatedAt:       now,
		ReleaseCount:      len(events),
		InvalidTagPattern: filter.Invalid(),
		Weeks:             results,
	}
	return
}

func (s *EvaluationService) fetch(ctx context.Context, repo release.Repository) ([]release.Event, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "release.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("repository", repo.String())))
	defer span.End()

	events, err := s.source.FetchReleases(ctx, repo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(release.ReasonOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("releases", len(events)))
	return events, nil
}

// evaluateWindow reads the prior record of window, evaluates it and writes the result.
func (s *EvaluationService) evaluateWindow(ctx context.Context, window week.Window, events []release.Event, filter verdict.TagFilter, now time.Time) (verdict.Verdict, error) {
	defer s.guard.window(window.Start, window.End)()

	var prior *verdict.Verdict
	existing, err := s.verdicts.GetVerdict(ctx, window.Start, window.End)
	switch {
	case err == nil:
		prior = &existing
	case errors.Is(mapRepoError(err), ErrNotFound):
	default:
		return verdict.Verdict{}, mapRepoError(err)
	}

	v := verdict.Evaluate(window, events, filter, prior, now)
	if err := v.Validate(); err != nil {
		return verdict.Verdict{}, err
	}
	if err := s.verdicts.SaveVerdict(ctx, v); err != nil {
		return verdict.Verdict{}, mapRepoError(err)
	}
	return v, nil
}

// Scorecard joins the windows for the current instant with their stored records.
func (s *EvaluationService) Scorecard(ctx context.Context) (card Scorecard, err error) {
	if s == nil {
		err = fmt.Errorf("EvaluationService is nil")
		return
	}
	if s.commitments == nil || s.verdicts == nil {
		err = fmt.Errorf("scorecard dependencies not configured")
		return
	}

	logger := s.loggerWith(ctx, "Scorecard")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build scorecard", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "scorecard built", "windows", len(card.Weeks))
	}()

	var commitment Commitment
	commitment, err = loadCommitment(ctx, s.commitments)
	if err != nil {
		return
	}

	var stored []verdict.Verdict
	stored, err = s.verdicts.ListVerdicts(ctx, persistence.RetentionLimit)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	now := s.now()
	card = buildScorecard(commitment, week.Compute(commitment.Rule, now, s.options.History), stored, now)
	return
}

func buildScorecard(commitment Commitment, windows []week.Window, stored []verdict.Verdict, now time.Time) Scorecard {
	card := Scorecard{
		Commitment:  commitment,
		GeneratedAt: now,
		Weeks:       make([]WindowVerdict, 0, len(windows)),
	}

	completed := make([]verdict.Verdict, 0, len(windows))
	for _, window := range windows {
		entry := WindowVerdict{Window: window}
		for i := range stored {
			if stored[i].WeekStart.Equal(window.Start) && stored[i].WeekEnd.Equal(window.End) {
				v := verdict.Settle(window, stored[i])
				entry.Verdict = &v
				if !window.IsCurrent {
					completed = append(completed, v)
				}
				break
			}
		}
		card.Weeks = append(card.Weeks, entry)
	}

	sort.SliceStable(card.Weeks, func(i, j int) bool {
		return card.Weeks[i].Window.End.After(card.Weeks[j].Window.End)
	})
	card.Summary = verdict.Summarize(completed)
	return card
}
