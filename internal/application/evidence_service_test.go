package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/proof-of-ship/internal/verdict"
)

func newEvidenceFixture(t *testing.T, records ...verdict.Verdict) (*EvidenceService, *verdictRepoStub) {
	t.Helper()
	now := at(t, "2024-03-14T10:00:00Z")
	commitment := mustCommitment(t, "acme/app", 0, "23:59", "UTC", nil)
	verdicts := newVerdictRepoStub(records...)
	svc := NewEvidenceService(&commitmentRepoStub{commitment: &commitment}, verdicts, func() time.Time { return now })
	return svc, verdicts
}

func TestEvidenceService_AttachEvidence(t *testing.T) {
	t.Parallel()

	lastStart, lastEnd := at(t, "2024-03-03T23:59:00Z"), at(t, "2024-03-10T23:59:00Z")

	t.Run("turns a failed window into grace", func(t *testing.T) {
		t.Parallel()

		svc, verdicts := newEvidenceFixture(t, verdict.Verdict{WeekStart: lastStart, WeekEnd: lastEnd, Status: verdict.StatusFail})
		got, err := svc.AttachEvidence(context.Background(), EvidenceParams{
			WeekStart:   lastStart,
			EvidenceURL: " https://example.com/demo ",
			Note:        "Shipped behind a flag",
		})
		if err != nil {
			t.Fatalf("AttachEvidence failed: %v", err)
		}
		if got.Status != verdict.StatusGrace || got.EvidenceURL == nil || *got.EvidenceURL != "https://example.com/demo" {
			t.Fatalf("unexpected verdict: %#v", got)
		}
		stored, ok := verdicts.get(lastStart, lastEnd)
		if !ok || stored.Status != verdict.StatusGrace || stored.Note == nil {
			t.Fatalf("expected grace to be stored, got %#v", stored)
		}
	})

	t.Run("creates a pending record for the current window", func(t *testing.T) {
		t.Parallel()

		svc, verdicts := newEvidenceFixture(t)
		start, end := at(t, "2024-03-10T23:59:00Z"), at(t, "2024-03-17T23:59:00Z")
		got, err := svc.AttachEvidence(context.Background(), EvidenceParams{WeekStart: start, Note: "working on it"})
		if err != nil {
			t.Fatalf("AttachEvidence failed: %v", err)
		}
		if got.Status != verdict.StatusPending {
			t.Fatalf("expected pending, got %s", got.Status)
		}
		if _, ok := verdicts.get(start, end); !ok {
			t.Fatalf("expected a record to be created")
		}
	})

	t.Run("rejects windows outside the tracked range", func(t *testing.T) {
		t.Parallel()

		svc, verdicts := newEvidenceFixture(t)
		_, err := svc.AttachEvidence(context.Background(), EvidenceParams{WeekStart: at(t, "2024-01-07T23:59:00Z"), EvidenceURL: "https://example.com"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if verdicts.saves != 0 {
			t.Fatalf("expected nothing to be saved")
		}
	})

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()

		svc, _ := newEvidenceFixture(t)
		cases := map[string]EvidenceParams{
			"evidence_url": {WeekStart: lastStart, EvidenceURL: "ftp://example.com/file"},
			"week_start":   {EvidenceURL: "https://example.com"},
			"note":         {WeekStart: lastStart, Note: strings.Repeat("x", maxNoteLength+1)},
		}
		for field, params := range cases {
			_, err := svc.AttachEvidence(context.Background(), params)
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.FieldErrors[field] == "" {
				t.Fatalf("expected validation error on %s, got %v", field, err)
			}
		}

		if _, err := svc.AttachEvidence(context.Background(), EvidenceParams{WeekStart: lastStart, EvidenceURL: "example.com"}); err == nil {
			t.Fatalf("expected a relative URL to be rejected")
		}
	})

	t.Run("requires a commitment", func(t *testing.T) {
		t.Parallel()

		svc := NewEvidenceService(&commitmentRepoStub{}, newVerdictRepoStub(), nil)
		if _, err := svc.AttachEvidence(context.Background(), EvidenceParams{WeekStart: lastStart}); !errors.Is(err, ErrNoCommitment) {
			t.Fatalf("expected ErrNoCommitment, got %v", err)
		}
	})
}
