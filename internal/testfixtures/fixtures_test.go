package testfixtures

import (
	"testing"
	"time"

	"github.com/example/proof-of-ship/internal/verdict"
)

func TestReferenceWindow(t *testing.T) {
	current := ReferenceWindow(0)
	if !current.IsCurrent || !current.End.Equal(time.Date(2024, time.March, 17, 23, 59, 0, 0, time.UTC)) {
		t.Fatalf("unexpected current window: %#v", current)
	}
	previous := ReferenceWindow(-1)
	if previous.IsCurrent || !previous.End.Equal(current.Start) {
		t.Fatalf("expected the previous window to end where the current starts, got %#v", previous)
	}
}

func TestWeekFixtureMaterialisation(t *testing.T) {
	fixture := NewWeekFixture(-1, WithWeekPass(3, "v0.3.0"), WithWeekNote("demo"))

	v := fixture.Verdict()
	if v.Status != verdict.StatusPass || v.Proof == nil || v.Proof.Tag != "v0.3.0" {
		t.Fatalf("unexpected verdict: %#v", v)
	}
	if err := v.Validate(); err != nil {
		t.Fatalf("expected a valid verdict, got %v", err)
	}

	stored := fixture.Persistence()
	if stored.Status != "pass" || stored.Proof == nil || stored.Proof.ReleaseID != 3 || stored.Note == nil {
		t.Fatalf("unexpected stored week: %#v", stored)
	}
	if NewWeekFixture(0).Status != verdict.StatusPending {
		t.Fatalf("expected the current week fixture to be pending")
	}
}
