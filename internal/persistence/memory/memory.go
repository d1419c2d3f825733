// Package memory provides a map backed persistence.Store used by tests and the
// "memory" storage driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/proof-of-ship/internal/persistence"
)

type weekKey struct {
	start int64
	end   int64
}

func keyOf(start, end time.Time) weekKey {
	return weekKey{start: start.UTC().UnixNano(), end: end.UTC().UnixNano()}
}

// Storage keeps commitments and weeks in process memory.
type Storage struct {
	mu         sync.RWMutex
	commitment *persistence.Commitment
	weeks      map[weekKey]persistence.Week
}

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{weeks: make(map[weekKey]persistence.Week)}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// Migrate is a no-op.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// GetCommitment returns the stored commitment.
func (s *Storage) GetCommitment(ctx context.Context) (persistence.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.commitment == nil {
		return persistence.Commitment{}, persistence.ErrNotFound
	}
	return persistence.CloneCommitment(*s.commitment), nil
}

// SetCommitment replaces the stored commitment.
func (s *Storage) SetCommitment(ctx context.Context, commitment persistence.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cloned := persistence.CloneCommitment(commitment)
	s.commitment = &cloned
	return nil
}

// GetWeek returns the week stored for the exact window bounds.
func (s *Storage) GetWeek(ctx context.Context, start, end time.Time) (persistence.Week, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	week, ok := s.weeks[keyOf(start, end)]
	if !ok {
		return persistence.Week{}, persistence.ErrNotFound
	}
	return persistence.CloneWeek(week), nil
}

// PutWeek upserts week and trims the store to persistence.RetentionLimit.
func (s *Storage) PutWeek(ctx context.Context, week persistence.Week) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := persistence.CloneWeek(week)
	stored.WeekStart = stored.WeekStart.UTC()
	stored.WeekEnd = stored.WeekEnd.UTC()
	s.weeks[keyOf(week.WeekStart, week.WeekEnd)] = stored
	s.evictLocked()
	return nil
}

// ListRecentWeeks returns up to limit weeks ordered by week end, newest first.
// A non-positive limit returns every stored week.
func (s *Storage) ListRecentWeeks(ctx context.Context, limit int) ([]persistence.Week, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	weeks := s.sortedLocked()
	if limit > 0 && len(weeks) > limit {
		weeks = weeks[:limit]
	}
	out := make([]persistence.Week, len(weeks))
	for i, week := range weeks {
		out[i] = persistence.CloneWeek(week)
	}
	return out, nil
}

// DeleteAllWeeks removes every stored week.
func (s *Storage) DeleteAllWeeks(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.weeks = make(map[weekKey]persistence.Week)
	return nil
}

func (s *Storage) sortedLocked() []persistence.Week {
	weeks := make([]persistence.Week, 0, len(s.weeks))
	for _, week := range s.weeks {
		weeks = append(weeks, week)
	}
	sort.Slice(weeks, func(i, j int) bool {
		if weeks[i].WeekEnd.Equal(weeks[j].WeekEnd) {
			return weeks[i].WeekStart.After(weeks[j].WeekStart)
		}
		return weeks[i].WeekEnd.After(weeks[j].WeekEnd)
	})
	return weeks
}

func (s *Storage) evictLocked() {
	if len(s.weeks) <= persistence.RetentionLimit {
		return
	}
	for _, week := range s.sortedLocked()[persistence.RetentionLimit:] {
		delete(s.weeks, keyOf(week.WeekStart, week.WeekEnd))
	}
}
