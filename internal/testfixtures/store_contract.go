package testfixtures

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/example/proof-of-ship/internal/persistence"
	"github.com/example/proof-of-ship/internal/verdict"
)

// StoreFactory returns an empty, migrated store for one subtest.
type StoreFactory func(t *testing.T) persistence.Store

// RunStoreContract checks the behaviour every persistence.Store driver shares.
func RunStoreContract(t *testing.T, open StoreFactory) {
	t.Helper()

	t.Run("reports a missing commitment", func(t *testing.T) {
		store := open(t)
		if _, err := store.GetCommitment(context.Background()); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("replaces the commitment", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		first := NewCommitmentFixture(WithCommitmentTagPattern(`^v\d+`)).Persistence()
		if err := store.SetCommitment(ctx, first); err != nil {
			t.Fatalf("SetCommitment failed: %v", err)
		}
		got, err := store.GetCommitment(ctx)
		if err != nil {
			t.Fatalf("GetCommitment failed: %v", err)
		}
		if got.ID != first.ID || got.RepositoryOwner != "acme" || got.TagPattern == nil || *got.TagPattern != `^v\d+` {
			t.Fatalf("unexpected commitment: %#v", got)
		}
		if !got.CreatedAt.Equal(first.CreatedAt) {
			t.Fatalf("expected created_at %v, got %v", first.CreatedAt, got.CreatedAt)
		}

		second := NewCommitmentFixture(
			WithCommitmentRepository("other", "tool"),
			WithCommitmentCutoff(5, "17:30", "Europe/Berlin"),
		).Persistence()
		second.ID = "commitment-2"
		if err := store.SetCommitment(ctx, second); err != nil {
			t.Fatalf("SetCommitment failed: %v", err)
		}
		got, err = store.GetCommitment(ctx)
		if err != nil {
			t.Fatalf("GetCommitment failed: %v", err)
		}
		if got.ID != "commitment-2" || got.RepositoryName != "tool" || got.DayOfWeek != 5 || got.CutoffTime != "17:30" || got.Timezone != "Europe/Berlin" || got.TagPattern != nil {
			t.Fatalf("expected whole-value replacement, got %#v", got)
		}
	})

	t.Run("round trips a week record", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		week := NewWeekFixture(-1, WithWeekPass(11, "v1.1.0"), WithWeekEvidence("https://example.com/demo"), WithWeekNote("shipped")).Persistence()
		name := "First release"
		week.Proof.Name = &name
		if err := store.PutWeek(ctx, week); err != nil {
			t.Fatalf("PutWeek failed: %v", err)
		}

		got, err := store.GetWeek(ctx, week.WeekStart, week.WeekEnd)
		if err != nil {
			t.Fatalf("GetWeek failed: %v", err)
		}
		if got.Status != string(verdict.StatusPass) || got.Proof == nil || got.Proof.ReleaseID != 11 || got.Proof.Tag != "v1.1.0" {
			t.Fatalf("unexpected week: %#v", got)
		}
		if got.Proof.Name == nil || *got.Proof.Name != name || !got.Proof.PublishedAt.Equal(week.Proof.PublishedAt) {
			t.Fatalf("unexpected proof: %#v", got.Proof)
		}
		if got.EvidenceURL == nil || *got.EvidenceURL != "https://example.com/demo" || got.Note == nil || *got.Note != "shipped" {
			t.Fatalf("unexpected evidence: %#v", got)
		}
		if !got.WeekStart.Equal(week.WeekStart) || !got.WeekEnd.Equal(week.WeekEnd) || !got.EvaluatedAt.Equal(week.EvaluatedAt) {
			t.Fatalf("unexpected instants: %#v", got)
		}
	})

	t.Run("matches weeks by exact bounds", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		week := NewWeekFixture(-1).Persistence()
		if err := store.PutWeek(ctx, week); err != nil {
			t.Fatalf("PutWeek failed: %v", err)
		}
		if _, err := store.GetWeek(ctx, week.WeekStart.Add(time.Minute), week.WeekEnd.Add(time.Minute)); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for shifted bounds, got %v", err)
		}
		tokyo, err := time.LoadLocation("Asia/Tokyo")
		if err != nil {
			t.Fatalf("LoadLocation failed: %v", err)
		}
		if _, err := store.GetWeek(ctx, week.WeekStart.In(tokyo), week.WeekEnd.In(tokyo)); err != nil {
			t.Fatalf("expected lookup to ignore the location, got %v", err)
		}
	})

	t.Run("updates a week in place", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		week := NewWeekFixture(-2).Persistence()
		if err := store.PutWeek(ctx, week); err != nil {
			t.Fatalf("PutWeek failed: %v", err)
		}
		updated := NewWeekFixture(-2, WithWeekStatus(verdict.StatusGrace), WithWeekEvidence("https://example.com")).Persistence()
		if err := store.PutWeek(ctx, updated); err != nil {
			t.Fatalf("PutWeek failed: %v", err)
		}

		weeks, err := store.ListRecentWeeks(ctx, 0)
		if err != nil {
			t.Fatalf("ListRecentWeeks failed: %v", err)
		}
		if len(weeks) != 1 || weeks[0].Status != string(verdict.StatusGrace) || weeks[0].EvidenceURL == nil {
			t.Fatalf("expected one updated record, got %#v", weeks)
		}
	})

	t.Run("keeps only the newest records", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		for index := -11; index <= 0; index++ {
			if err := store.PutWeek(ctx, NewWeekFixture(index).Persistence()); err != nil {
				t.Fatalf("PutWeek(%d) failed: %v", index, err)
			}
		}

		weeks, err := store.ListRecentWeeks(ctx, 0)
		if err != nil {
			t.Fatalf("ListRecentWeeks failed: %v", err)
		}
		if len(weeks) != persistence.RetentionLimit {
			t.Fatalf("expected %d records, got %d", persistence.RetentionLimit, len(weeks))
		}
		for i, w := range weeks {
			if want := ReferenceWindow(-i); !w.WeekEnd.Equal(want.End) {
				t.Fatalf("record %d: expected end %v, got %v", i, want.End, w.WeekEnd)
			}
		}
		oldest := ReferenceWindow(-8)
		if _, err := store.GetWeek(ctx, oldest.Start, oldest.End); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected the ninth newest record to be evicted, got %v", err)
		}

		limited, err := store.ListRecentWeeks(ctx, 3)
		if err != nil {
			t.Fatalf("ListRecentWeeks failed: %v", err)
		}
		if len(limited) != 3 || !limited[0].WeekEnd.Equal(ReferenceWindow(0).End) {
			t.Fatalf("unexpected limited listing: %#v", limited)
		}
	})

	t.Run("evicts by week end even when written out of order", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		for index := 0; index >= -7; index-- {
			if err := store.PutWeek(ctx, NewWeekFixture(index).Persistence()); err != nil {
				t.Fatalf("PutWeek(%d) failed: %v", index, err)
			}
		}
		stale := NewWeekFixture(-9).Persistence()
		if err := store.PutWeek(ctx, stale); err != nil {
			t.Fatalf("PutWeek failed: %v", err)
		}
		if _, err := store.GetWeek(ctx, stale.WeekStart, stale.WeekEnd); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected an older record to be evicted immediately, got %v", err)
		}
	})

	t.Run("handles concurrent writes", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		var wg sync.WaitGroup
		errs := make(chan error, 5)
		for index := 0; index >= -4; index-- {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.PutWeek(ctx, NewWeekFixture(index).Persistence())
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent PutWeek failed: %v", err)
			}
		}

		weeks, err := store.ListRecentWeeks(ctx, 0)
		if err != nil {
			t.Fatalf("ListRecentWeeks failed: %v", err)
		}
		if len(weeks) != 5 {
			t.Fatalf("expected 5 records, got %d", len(weeks))
		}
	})

	t.Run("deletes every week", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		for index := 0; index >= -2; index-- {
			if err := store.PutWeek(ctx, NewWeekFixture(index).Persistence()); err != nil {
				t.Fatalf("PutWeek failed: %v", err)
			}
		}
		if err := store.DeleteAllWeeks(ctx); err != nil {
			t.Fatalf("DeleteAllWeeks failed: %v", err)
		}
		weeks, err := store.ListRecentWeeks(ctx, 0)
		if err != nil {
			t.Fatalf("ListRecentWeeks failed: %v", err)
		}
		if len(weeks) != 0 {
			t.Fatalf("expected no records, got %d", len(weeks))
		}
	})
}
