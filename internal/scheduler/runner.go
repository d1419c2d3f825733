// Package scheduler runs evaluation passes in the background so completed
// windows settle without a caller asking for them.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/proof-of-ship/internal/application"
	"github.com/example/proof-of-ship/internal/week"
)

// SettleDelay is added after a cutoff so the pass sees the window as completed.
const SettleDelay = 5 * time.Second

// Evaluator runs one evaluation pass.
type Evaluator interface {
	Evaluate(ctx context.Context) (application.EvaluationResult, error)
}

// CommitmentReader returns the connected commitment.
type CommitmentReader interface {
	Get(ctx context.Context) (application.Commitment, error)
}

// Runner triggers a pass every interval and shortly after each cutoff.
type Runner struct {
	evaluator   Evaluator
	commitments CommitmentReader
	interval    time.Duration
	now         func() time.Time
	after       func(time.Duration) <-chan time.Time
	logger      *slog.Logger
}

// Option customises a Runner.
type Option func(*Runner)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithTimer overrides how the runner waits between passes.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(r *Runner) {
		if after != nil {
			r.after = after
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner builds a runner. The interval must be positive.
func NewRunner(evaluator Evaluator, commitments CommitmentReader, interval time.Duration, opts ...Option) *Runner {
	r := &Runner{
		evaluator:   evaluator,
		commitments: commitments,
		interval:    interval,
		now:         time.Now,
		after:       time.After,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "scheduler")
	return r
}

// Run blocks until ctx is cancelled, running a pass each time the next
// trigger elapses. Pass failures are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "scheduler started", "interval", r.interval)
	for {
		wait := r.NextDelay(ctx)
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler stopped")
			return nil
		case <-r.after(wait):
		}
		r.runOnce(ctx)
	}
}

// NextDelay returns how long to wait before the next pass: the interval, or
// less when a cutoff falls inside it.
func (r *Runner) NextDelay(ctx context.Context) time.Duration {
	wait := r.interval
	commitment, err := r.commitments.Get(ctx)
	if err != nil {
		if !errors.Is(err, application.ErrNoCommitment) {
			r.logger.WarnContext(ctx, "failed to read commitment", "error", err)
		}
		return wait
	}

	now := r.now()
	untilCutoff := week.NextCutoff(commitment.Rule, now).Sub(now) + SettleDelay
	if untilCutoff < wait || wait <= 0 {
		wait = untilCutoff
	}
	return wait
}

func (r *Runner) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := r.now()
	result, err := r.evaluator.Evaluate(ctx)
	switch {
	case err == nil:
		r.logger.InfoContext(ctx, "scheduled pass completed",
			"weeks", len(result.Weeks),
			"releases", result.ReleaseCount,
			"duration", r.now().Sub(start))
	case errors.Is(err, application.ErrNoCommitment):
		r.logger.DebugContext(ctx, "scheduled pass skipped: no commitment")
	case errors.Is(err, context.Canceled):
	default:
		r.logger.WarnContext(ctx, "scheduled pass failed", "error", err, "error_kind", application.ErrorKind(err))
	}
}
