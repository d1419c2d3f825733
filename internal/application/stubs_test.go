package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/proof-of-ship/internal/persistence"
	"github.com/example/proof-of-ship/internal/release"
	"github.com/example/proof-of-ship/internal/verdict"
)

type commitmentRepoStub struct {
	mu         sync.Mutex
	commitment *Commitment
	getErr     error
	saveErr    error
	saves      []Commitment
}

func (s *commitmentRepoStub) GetCommitment(ctx context.Context) (Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return Commitment{}, s.getErr
	}
	if s.commitment == nil {
		return Commitment{}, persistence.ErrNotFound
	}
	return *s.commitment, nil
}

func (s *commitmentRepoStub) SaveCommitment(ctx context.Context, commitment Commitment) (Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return Commitment{}, s.saveErr
	}
	stored := commitment
	s.commitment = &stored
	s.saves = append(s.saves, commitment)
	return commitment, nil
}

type verdictKey struct {
	start int64
	end   int64
}

type verdictRepoStub struct {
	mu       sync.Mutex
	records  map[verdictKey]verdict.Verdict
	getErr   error
	saveErr  error
	saves    int
	clears   int
	getCalls int
}

func newVerdictRepoStub(records ...verdict.Verdict) *verdictRepoStub {
	stub := &verdictRepoStub{records: make(map[verdictKey]verdict.Verdict)}
	for _, v := range records {
		stub.records[keyOf(v.WeekStart, v.WeekEnd)] = v
	}
	return stub
}

func keyOf(start, end time.Time) verdictKey {
	return verdictKey{start: start.UnixNano(), end: end.UnixNano()}
}

func (s *verdictRepoStub) GetVerdict(ctx context.Context, start, end time.Time) (verdict.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return verdict.Verdict{}, s.getErr
	}
	v, ok := s.records[keyOf(start, end)]
	if !ok {
		return verdict.Verdict{}, persistence.ErrNotFound
	}
	return v, nil
}

func (s *verdictRepoStub) SaveVerdict(ctx context.Context, v verdict.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.records[keyOf(v.WeekStart, v.WeekEnd)] = v
	return nil
}

func (s *verdictRepoStub) ListVerdicts(ctx context.Context, limit int) ([]verdict.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]verdict.Verdict, 0, len(s.records))
	for _, v := range s.records {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekEnd.After(out[j].WeekEnd) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *verdictRepoStub) ClearVerdicts(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.records = make(map[verdictKey]verdict.Verdict)
	return nil
}

func (s *verdictRepoStub) get(start, end time.Time) (verdict.Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[keyOf(start, end)]
	return v, ok
}

type releaseSourceStub struct {
	mu     sync.Mutex
	events []release.Event
	err    error
	calls  int
}

func (s *releaseSourceStub) FetchReleases(ctx context.Context, repo release.Repository) ([]release.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}
