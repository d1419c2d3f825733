package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/proof-of-ship/internal/release"
	"github.com/example/proof-of-ship/internal/week"
)

func mustCommitment(t *testing.T, repo string, day int, clock, zone string, pattern *string) Commitment {
	t.Helper()
	parsed, err := release.ParseRepository(repo)
	if err != nil {
		t.Fatalf("ParseRepository(%q) failed: %v", repo, err)
	}
	rule, err := week.NewRule(day, clock, zone, pattern)
	if err != nil {
		t.Fatalf("NewRule failed: %v", err)
	}
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return Commitment{ID: "commitment-1", Repository: parsed, Rule: rule, CreatedAt: created, UpdatedAt: created}
}

func TestCommitmentService_Connect(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	cutoff := CutoffInput{DayOfWeek: 0, CutoffTime: "23:59", Timezone: "UTC"}

	t.Run("stores a new commitment", func(t *testing.T) {
		t.Parallel()

		commitments := &commitmentRepoStub{}
		verdicts := newVerdictRepoStub()
		svc := NewCommitmentService(commitments, verdicts, func() string { return "generated" }, func() time.Time { return now })

		got, err := svc.Connect(context.Background(), ConnectParams{Repository: "https://github.com/Acme/App", Cutoff: cutoff})
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if got.ID != "generated" || got.Repository.String() != "Acme/App" {
			t.Fatalf("unexpected commitment: %#v", got)
		}
		if !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
			t.Fatalf("expected timestamps to use now, got %#v", got)
		}
		if got.Rule.Describe() != "Sunday at 23:59 (UTC)" {
			t.Fatalf("unexpected rule: %s", got.Rule.Describe())
		}
		if verdicts.clears != 0 {
			t.Fatalf("expected no clear for a first connect")
		}
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		t.Parallel()

		commitments := &commitmentRepoStub{}
		svc := NewCommitmentService(commitments, newVerdictRepoStub(), nil, nil)

		_, err := svc.Connect(context.Background(), ConnectParams{
			Repository: "not a repo",
			Cutoff:     CutoffInput{DayOfWeek: 9, CutoffTime: "25:00", Timezone: "Nowhere/City"},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"repository", "day_of_week", "cutoff_time", "timezone"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected field error for %s, got %#v", field, vErr.FieldErrors)
			}
		}
		if len(commitments.saves) != 0 {
			t.Fatalf("expected nothing to be saved")
		}
	})

	t.Run("keeps identity and records when reconnecting the same repository", func(t *testing.T) {
		t.Parallel()

		existing := mustCommitment(t, "acme/app", 5, "17:00", "Europe/Berlin", nil)
		commitments := &commitmentRepoStub{commitment: &existing}
		verdicts := newVerdictRepoStub()
		svc := NewCommitmentService(commitments, verdicts, func() string { return "fresh" }, func() time.Time { return now })

		got, err := svc.Connect(context.Background(), ConnectParams{Repository: "ACME/app", Cutoff: cutoff})
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if got.ID != existing.ID || !got.CreatedAt.Equal(existing.CreatedAt) {
			t.Fatalf("expected identity to be kept, got %#v", got)
		}
		if verdicts.clears != 0 {
			t.Fatalf("expected records to be kept for the same repository")
		}
		if got.Rule.Day != time.Sunday {
			t.Fatalf("expected the rule to be replaced, got %s", got.Rule.Describe())
		}
	})

	t.Run("clears records when switching repositories", func(t *testing.T) {
		t.Parallel()

		existing := mustCommitment(t, "acme/app", 0, "23:59", "UTC", nil)
		commitments := &commitmentRepoStub{commitment: &existing}
		verdicts := newVerdictRepoStub()
		svc := NewCommitmentService(commitments, verdicts, func() string { return "fresh" }, func() time.Time { return now })

		got, err := svc.Connect(context.Background(), ConnectParams{Repository: "other/tool", Cutoff: cutoff})
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if got.ID != "fresh" {
			t.Fatalf("expected a new identity, got %q", got.ID)
		}
		if verdicts.clears != 1 {
			t.Fatalf("expected records to be cleared once, got %d", verdicts.clears)
		}
	})

	t.Run("propagates storage failures", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		svc := NewCommitmentService(&commitmentRepoStub{saveErr: boom}, newVerdictRepoStub(), nil, nil)
		if _, err := svc.Connect(context.Background(), ConnectParams{Repository: "acme/app", Cutoff: cutoff}); !errors.Is(err, boom) {
			t.Fatalf("expected storage error, got %v", err)
		}
	})
}

func TestCommitmentService_UpdateCutoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("requires a commitment", func(t *testing.T) {
		t.Parallel()

		svc := NewCommitmentService(&commitmentRepoStub{}, newVerdictRepoStub(), nil, nil)
		_, err := svc.UpdateCutoff(context.Background(), CutoffInput{DayOfWeek: 1, CutoffTime: "09:00", Timezone: "UTC"})
		if !errors.Is(err, ErrNoCommitment) {
			t.Fatalf("expected ErrNoCommitment, got %v", err)
		}
	})

	t.Run("replaces the rule and keeps records", func(t *testing.T) {
		t.Parallel()

		existing := mustCommitment(t, "acme/app", 0, "23:59", "UTC", nil)
		commitments := &commitmentRepoStub{commitment: &existing}
		verdicts := newVerdictRepoStub()
		svc := NewCommitmentService(commitments, verdicts, nil, func() time.Time { return now })

		pattern := `^v\d+`
		got, err := svc.UpdateCutoff(context.Background(), CutoffInput{DayOfWeek: 1, CutoffTime: "09:00", Timezone: "Asia/Tokyo", TagPattern: &pattern})
		if err != nil {
			t.Fatalf("UpdateCutoff failed: %v", err)
		}
		if got.Rule.Describe() != "Monday at 09:00 (Asia/Tokyo)" || got.Rule.TagPattern != pattern {
			t.Fatalf("unexpected rule: %s / %q", got.Rule.Describe(), got.Rule.TagPattern)
		}
		if got.ID != existing.ID || !got.UpdatedAt.Equal(now) || !got.CreatedAt.Equal(existing.CreatedAt) {
			t.Fatalf("unexpected identity or timestamps: %#v", got)
		}
		if verdicts.clears != 0 {
			t.Fatalf("expected records to be kept on cutoff change")
		}
	})

	t.Run("rejects an invalid rule", func(t *testing.T) {
		t.Parallel()

		existing := mustCommitment(t, "acme/app", 0, "23:59", "UTC", nil)
		commitments := &commitmentRepoStub{commitment: &existing}
		svc := NewCommitmentService(commitments, newVerdictRepoStub(), nil, nil)

		_, err := svc.UpdateCutoff(context.Background(), CutoffInput{DayOfWeek: 0, CutoffTime: "noon", Timezone: "UTC"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["cutoff_time"] == "" {
			t.Fatalf("expected cutoff_time validation error, got %v", err)
		}
		if len(commitments.saves) != 0 {
			t.Fatalf("expected nothing to be saved")
		}
	})
}

func TestCommitmentService_Get(t *testing.T) {
	t.Parallel()

	svc := NewCommitmentService(&commitmentRepoStub{}, nil, nil, nil)
	if _, err := svc.Get(context.Background()); !errors.Is(err, ErrNoCommitment) {
		t.Fatalf("expected ErrNoCommitment, got %v", err)
	}

	var nilSvc *CommitmentService
	if _, err := nilSvc.Get(context.Background()); !errors.Is(err, ErrNoCommitment) {
		t.Fatalf("expected ErrNoCommitment from nil service, got %v", err)
	}
}
