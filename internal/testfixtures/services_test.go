package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/proof-of-ship/internal/application"
	"github.com/example/proof-of-ship/internal/verdict"
)

type capturingCommitmentRepo struct {
	saved *application.Commitment
}

func (c *capturingCommitmentRepo) GetCommitment(ctx context.Context) (application.Commitment, error) {
	if c.saved == nil {
		return application.Commitment{}, application.ErrNotFound
	}
	return *c.saved, nil
}

func (c *capturingCommitmentRepo) SaveCommitment(ctx context.Context, commitment application.Commitment) (application.Commitment, error) {
	c.saved = &commitment
	return commitment, nil
}

type discardVerdictRepo struct{}

func (discardVerdictRepo) GetVerdict(ctx context.Context, start, end time.Time) (verdict.Verdict, error) {
	return verdict.Verdict{}, application.ErrNotFound
}

func (discardVerdictRepo) SaveVerdict(ctx context.Context, v verdict.Verdict) error { return nil }

func (discardVerdictRepo) ListVerdicts(ctx context.Context, limit int) ([]verdict.Verdict, error) {
	return nil, nil
}

func (discardVerdictRepo) ClearVerdicts(ctx context.Context) error { return nil }

func TestServiceFactoryNewCommitmentService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingCommitmentRepo{}

	svc := factory.NewCommitmentService(ServiceDeps{Commitments: repo, Verdicts: discardVerdictRepo{}})
	commitment, err := svc.Connect(context.Background(), application.ConnectParams{
		Repository: "acme/app",
		Cutoff:     application.CutoffInput{DayOfWeek: 0, CutoffTime: "23:59", Timezone: "UTC"},
	})
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	if commitment.ID != "commitment-1" {
		t.Fatalf("expected generated ID commitment-1, got %q", commitment.ID)
	}
	if repo.saved == nil || repo.saved.ID != commitment.ID {
		t.Fatalf("repository received unexpected commitment: %#v", repo.saved)
	}
	if !commitment.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), commitment.CreatedAt)
	}
}

func TestServiceFactoryNewEvidenceService(t *testing.T) {
	factory := NewServiceFactory()
	commitment := NewCommitmentFixture().Application()
	repo := &capturingCommitmentRepo{saved: &commitment}

	svc := factory.NewEvidenceService(ServiceDeps{Commitments: repo, Verdicts: discardVerdictRepo{}})
	got, err := svc.AttachEvidence(context.Background(), application.EvidenceParams{
		WeekStart:   ReferenceWindow(-1).Start,
		EvidenceURL: "https://example.com/demo",
	})
	if err != nil {
		t.Fatalf("AttachEvidence returned error: %v", err)
	}
	if got.Status != verdict.StatusGrace || !got.EvaluatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("unexpected verdict: %#v", got)
	}
}
