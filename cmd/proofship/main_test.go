package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/proof-of-ship/internal/application"
	"github.com/example/proof-of-ship/internal/persistence"
	"github.com/example/proof-of-ship/internal/persistence/memory"
	"github.com/example/proof-of-ship/internal/release"
	"github.com/example/proof-of-ship/internal/testfixtures"
	"github.com/example/proof-of-ship/internal/verdict"
)

func TestCommitmentRepositoryAdapter(t *testing.T) {
	t.Parallel()

	t.Run("round trips through the store", func(t *testing.T) {
		t.Parallel()

		store := memory.Open()
		adapter := newCommitmentRepositoryAdapter(store)
		want := testfixtures.NewCommitmentFixture(testfixtures.WithCommitmentTagPattern(`^v\d+`)).Application()

		got, err := adapter.SaveCommitment(context.Background(), want)
		if err != nil {
			t.Fatalf("SaveCommitment returned error: %v", err)
		}
		if got.ID != want.ID || got.Repository != want.Repository {
			t.Fatalf("unexpected commitment: %#v", got)
		}
		if got.Rule.Day != want.Rule.Day || got.Rule.Clock() != want.Rule.Clock() ||
			got.Rule.Timezone != want.Rule.Timezone || got.Rule.TagPattern != `^v\d+` {
			t.Fatalf("unexpected rule: %#v", got.Rule)
		}
	})

	t.Run("passes not found through", func(t *testing.T) {
		t.Parallel()

		adapter := newCommitmentRepositoryAdapter(memory.Open())
		if _, err := adapter.GetCommitment(context.Background()); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects a corrupt stored rule", func(t *testing.T) {
		t.Parallel()

		store := memory.Open()
		stored := testfixtures.NewCommitmentFixture().Persistence()
		stored.Timezone = "Nowhere/Void"
		if err := store.SetCommitment(context.Background(), stored); err != nil {
			t.Fatalf("SetCommitment returned error: %v", err)
		}

		if _, err := newCommitmentRepositoryAdapter(store).GetCommitment(context.Background()); err == nil {
			t.Fatalf("expected an error for an invalid timezone")
		}
	})
}

func TestVerdictRepositoryAdapter(t *testing.T) {
	t.Parallel()

	updatedAt := testfixtures.ReferenceTime()
	store := memory.Open()
	adapter := newVerdictRepositoryAdapter(store, func() time.Time { return updatedAt })
	ctx := context.Background()

	pass := testfixtures.NewWeekFixture(-1, testfixtures.WithWeekPass(42, "v1.2.0")).Verdict()
	grace := testfixtures.NewWeekFixture(-2, testfixtures.WithWeekStatus(verdict.StatusGrace), testfixtures.WithWeekEvidence("https://example.com/demo"), testfixtures.WithWeekNote("demo day")).Verdict()
	for _, v := range []verdict.Verdict{pass, grace} {
		if err := adapter.SaveVerdict(ctx, v); err != nil {
			t.Fatalf("SaveVerdict returned error: %v", err)
		}
	}

	got, err := adapter.GetVerdict(ctx, pass.WeekStart, pass.WeekEnd)
	if err != nil {
		t.Fatalf("GetVerdict returned error: %v", err)
	}
	if got.Status != verdict.StatusPass || got.Proof == nil || got.Proof.ID != 42 || got.Proof.Tag != "v1.2.0" {
		t.Fatalf("unexpected verdict: %#v", got)
	}

	stored, err := store.GetWeek(ctx, pass.WeekStart, pass.WeekEnd)
	if err != nil {
		t.Fatalf("GetWeek returned error: %v", err)
	}
	if !stored.UpdatedAt.Equal(updatedAt) || stored.Proof.ReleaseID != 42 {
		t.Fatalf("unexpected stored week: %#v", stored)
	}

	list, err := adapter.ListVerdicts(ctx, persistence.RetentionLimit)
	if err != nil {
		t.Fatalf("ListVerdicts returned error: %v", err)
	}
	if len(list) != 2 || !list[0].WeekEnd.Equal(pass.WeekEnd) {
		t.Fatalf("expected newest first, got %#v", list)
	}
	if list[1].EvidenceURL == nil || *list[1].EvidenceURL != "https://example.com/demo" || list[1].Note == nil {
		t.Fatalf("expected evidence to survive, got %#v", list[1])
	}

	if err := adapter.ClearVerdicts(ctx); err != nil {
		t.Fatalf("ClearVerdicts returned error: %v", err)
	}
	if list, _ := adapter.ListVerdicts(ctx, 0); len(list) != 0 {
		t.Fatalf("expected no verdicts after clearing, got %d", len(list))
	}
}

func TestEvaluateAndPrint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := testfixtures.ReferenceTime()
	clock := func() time.Time { return now }
	store := memory.Open()
	commitments := newCommitmentRepositoryAdapter(store)
	verdicts := newVerdictRepositoryAdapter(store, clock)

	commitmentService := application.NewCommitmentService(commitments, verdicts, func() string { return "commitment-1" }, clock)
	if _, err := commitmentService.Connect(ctx, application.ConnectParams{
		Repository: "acme/app",
		Cutoff:     application.CutoffInput{DayOfWeek: 0, CutoffTime: "23:59", Timezone: "UTC"},
	}); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	lastWeek := testfixtures.ReferenceWindow(-1)
	source := release.SourceFunc(func(context.Context, release.Repository) ([]release.Event, error) {
		return []release.Event{testfixtures.NewRelease(1, "v1.0.0", lastWeek.Start.Add(48*time.Hour))}, nil
	})
	service := application.NewEvaluationService(commitments, verdicts, source, clock)

	var out bytes.Buffer
	if err := evaluateAndPrint(ctx, service, &out); err != nil {
		t.Fatalf("evaluateAndPrint returned error: %v", err)
	}

	var card scorecardOutput
	if err := json.Unmarshal(out.Bytes(), &card); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if card.Repository != "acme/app" || len(card.Weeks) < 2 {
		t.Fatalf("unexpected scorecard: %#v", card)
	}
	if card.Weeks[0].Status != string(verdict.StatusPending) {
		t.Fatalf("expected the current week pending, got %#v", card.Weeks[0])
	}
	if card.Weeks[1].Status != string(verdict.StatusPass) || card.Weeks[1].Tag != "v1.0.0" || card.Kept != 1 {
		t.Fatalf("expected last week to pass, got %#v", card)
	}
}

func TestEvaluateAndPrintReportsFetchFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := testfixtures.ReferenceTime
	store := memory.Open()
	commitments := newCommitmentRepositoryAdapter(store)
	verdicts := newVerdictRepositoryAdapter(store, clock)
	if _, err := commitments.SaveCommitment(ctx, testfixtures.NewCommitmentFixture().Application()); err != nil {
		t.Fatalf("SaveCommitment returned error: %v", err)
	}

	source := release.SourceFunc(func(context.Context, release.Repository) ([]release.Event, error) {
		return nil, &release.FetchError{Reason: release.ReasonRateLimited, StatusCode: 403, Err: release.ErrRateLimited}
	})
	service := application.NewEvaluationService(commitments, verdicts, source, clock)

	var out bytes.Buffer
	err := evaluateAndPrint(ctx, service, &out)
	if !errors.Is(err, release.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}
