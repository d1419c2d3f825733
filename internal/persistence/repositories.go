package persistence

import (
	"context"
	"time"
)

// RetentionLimit is the number of week records kept, newest by week end.
const RetentionLimit = 8

// WeekRepository stores one verdict per week window.
type WeekRepository interface {
	GetWeek(ctx context.Context, start, end time.Time) (Week, error)
	// PutWeek upserts by (week_start, week_end) and then evicts all but the
	// newest RetentionLimit records in the same atomic step.
	PutWeek(ctx context.Context, week Week) error
	ListRecentWeeks(ctx context.Context, limit int) ([]Week, error)
	DeleteAllWeeks(ctx context.Context) error
}

// CommitmentRepository stores the connected repository and cutoff rule.
type CommitmentRepository interface {
	GetCommitment(ctx context.Context) (Commitment, error)
	SetCommitment(ctx context.Context, commitment Commitment) error
}

// Store groups the repositories a storage driver provides.
type Store interface {
	WeekRepository
	CommitmentRepository
	Migrate(ctx context.Context) error
	Close() error
}
