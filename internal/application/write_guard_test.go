package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/proof-of-ship/internal/verdict"
	"github.com/example/proof-of-ship/internal/week"
)

// interleavingVerdictRepo runs during once, right after the first read of the
// window starting at start, while the caller still holds that record in memory.
type interleavingVerdictRepo struct {
	*verdictRepoStub
	start  time.Time
	during func()
	once   sync.Once
}

func (r *interleavingVerdictRepo) GetVerdict(ctx context.Context, start, end time.Time) (verdict.Verdict, error) {
	v, err := r.verdictRepoStub.GetVerdict(ctx, start, end)
	if start.Equal(r.start) {
		r.once.Do(r.during)
	}
	return v, err
}

// startConcurrently runs fn in a goroutine and gives it time to land a write
// before the caller continues.
func startConcurrently(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		// Completed without waiting on the guard; hand the result back.
		replay := make(chan error, 1)
		replay <- err
		return replay
	case <-time.After(20 * time.Millisecond):
		return done
	}
}

func waitFor(t *testing.T, done <-chan error, what string) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("%s failed: %v", what, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s never completed", what)
	}
}

func TestWriteGuard(t *testing.T) {
	t.Parallel()

	start, end := at(t, "2024-03-03T23:59:00Z"), at(t, "2024-03-10T23:59:00Z")

	t.Run("serialises holders of the same window", func(t *testing.T) {
		t.Parallel()

		guard := NewWriteGuard()
		unlock := guard.window(start, end)
		acquired := make(chan struct{})
		go func() {
			defer close(acquired)
			guard.window(start, end)()
		}()

		select {
		case <-acquired:
			t.Fatalf("expected the second holder to wait")
		case <-time.After(20 * time.Millisecond):
		}
		unlock()
		<-acquired
		if n := guard.tracked(); n != 0 {
			t.Fatalf("expected released windows to be dropped, %d left", n)
		}
	})

	t.Run("does not block other windows", func(t *testing.T) {
		t.Parallel()

		guard := NewWriteGuard()
		unlock := guard.window(start, end)
		defer unlock()
		done := make(chan struct{})
		go func() {
			defer close(done)
			guard.window(end, end.Add(week.Length))()
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("expected a different window to be free")
		}
	})

	t.Run("exclusive waits for shared holders", func(t *testing.T) {
		t.Parallel()

		guard := NewWriteGuard()
		release := guard.shared()
		acquired := make(chan struct{})
		go func() {
			defer close(acquired)
			guard.exclusive()()
		}()
		select {
		case <-acquired:
			t.Fatalf("expected exclusive holder to wait")
		case <-time.After(20 * time.Millisecond):
		}
		release()
		<-acquired
	})
}

func TestGuardedWritesDuringEvaluation(t *testing.T) {
	t.Parallel()

	now := at(t, "2024-03-14T10:00:00Z")
	clock := func() time.Time { return now }
	lastStart, lastEnd := at(t, "2024-03-03T23:59:00Z"), at(t, "2024-03-10T23:59:00Z")

	t.Run("keeps evidence attached while a pass reads the same week", func(t *testing.T) {
		t.Parallel()

		commitment := mustCommitment(t, "acme/app", 0, "23:59", "UTC", nil)
		commitments := &commitmentRepoStub{commitment: &commitment}
		stored := newVerdictRepoStub(verdict.Verdict{WeekStart: lastStart, WeekEnd: lastEnd, Status: verdict.StatusFail})
		guard := NewWriteGuard()
		evidence := NewEvidenceServiceWithLogger(commitments, stored, clock, week.DefaultHistory, guard, nil)

		var attached <-chan error
		repo := &interleavingVerdictRepo{verdictRepoStub: stored, start: lastStart, during: func() {
			attached = startConcurrently(func() error {
				_, err := evidence.AttachEvidence(context.Background(), EvidenceParams{
					WeekStart:   lastStart,
					EvidenceURL: "https://example.com/demo",
				})
				return err
			})
		}}
		svc := NewEvaluationServiceWithLogger(commitments, repo, &releaseSourceStub{}, clock,
			EvaluationOptions{History: week.DefaultHistory, Guard: guard}, nil)

		if _, err := svc.Evaluate(context.Background()); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		waitFor(t, attached, "AttachEvidence")

		got, ok := stored.get(lastStart, lastEnd)
		if !ok || got.Status != verdict.StatusGrace || !got.HasEvidence() {
			t.Fatalf("expected grace with the attached evidence, got %#v", got)
		}
		if n := guard.tracked(); n != 0 {
			t.Fatalf("expected every window lock to be released, %d left", n)
		}
	})

	t.Run("clears records only after a running pass", func(t *testing.T) {
		t.Parallel()

		commitment := mustCommitment(t, "acme/app", 0, "23:59", "UTC", nil)
		commitments := &commitmentRepoStub{commitment: &commitment}
		stored := newVerdictRepoStub(verdict.Verdict{WeekStart: lastStart, WeekEnd: lastEnd, Status: verdict.StatusFail})
		guard := NewWriteGuard()
		connector := NewCommitmentServiceWithLogger(commitments, stored, func() string { return "commitment-2" }, clock, guard, nil)

		var connected <-chan error
		repo := &interleavingVerdictRepo{verdictRepoStub: stored, start: lastStart, during: func() {
			connected = startConcurrently(func() error {
				_, err := connector.Connect(context.Background(), ConnectParams{
					Repository: "acme/other",
					Cutoff:     CutoffInput{DayOfWeek: 0, CutoffTime: "23:59", Timezone: "UTC"},
				})
				return err
			})
		}}
		svc := NewEvaluationServiceWithLogger(commitments, repo, &releaseSourceStub{}, clock,
			EvaluationOptions{History: week.DefaultHistory, Guard: guard}, nil)

		if _, err := svc.Evaluate(context.Background()); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		waitFor(t, connected, "Connect")

		left, err := stored.ListVerdicts(context.Background(), 0)
		if err != nil {
			t.Fatalf("ListVerdicts failed: %v", err)
		}
		if len(left) != 0 {
			t.Fatalf("expected no records of the previous repository, got %d", len(left))
		}
		if commitments.commitment.Repository.Name != "other" {
			t.Fatalf("expected the new repository to be stored, got %s", commitments.commitment.Repository)
		}
	})
}
