package application

import (
	"context"
	"errors"
	"time"

	"github.com/example/proof-of-ship/internal/persistence"
	"github.com/example/proof-of-ship/internal/verdict"
)

// CommitmentRepository captures the commitment persistence used by the services.
type CommitmentRepository interface {
	GetCommitment(ctx context.Context) (Commitment, error)
	SaveCommitment(ctx context.Context, commitment Commitment) (Commitment, error)
}

// VerdictRepository captures the week record persistence used by the services.
type VerdictRepository interface {
	GetVerdict(ctx context.Context, start, end time.Time) (verdict.Verdict, error)
	SaveVerdict(ctx context.Context, v verdict.Verdict) error
	ListVerdicts(ctx context.Context, limit int) ([]verdict.Verdict, error)
	ClearVerdicts(ctx context.Context) error
}

func mapRepoError(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
