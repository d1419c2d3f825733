package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/proof-of-ship/internal/application"
	"github.com/example/proof-of-ship/internal/persistence"
	"github.com/example/proof-of-ship/internal/release"
	"github.com/example/proof-of-ship/internal/verdict"
	"github.com/example/proof-of-ship/internal/week"
)

type commitmentRepositoryAdapter struct {
	repo persistence.CommitmentRepository
}

func newCommitmentRepositoryAdapter(repo persistence.CommitmentRepository) *commitmentRepositoryAdapter {
	return &commitmentRepositoryAdapter{repo: repo}
}

func (a *commitmentRepositoryAdapter) GetCommitment(ctx context.Context) (application.Commitment, error) {
	stored, err := a.repo.GetCommitment(ctx)
	if err != nil {
		return application.Commitment{}, err
	}
	return toApplicationCommitment(stored)
}

func (a *commitmentRepositoryAdapter) SaveCommitment(ctx context.Context, commitment application.Commitment) (application.Commitment, error) {
	if err := a.repo.SetCommitment(ctx, toPersistenceCommitment(commitment)); err != nil {
		return application.Commitment{}, err
	}
	return a.GetCommitment(ctx)
}

type verdictRepositoryAdapter struct {
	repo persistence.WeekRepository
	now  func() time.Time
}

func newVerdictRepositoryAdapter(repo persistence.WeekRepository, now func() time.Time) *verdictRepositoryAdapter {
	if now == nil {
		now = time.Now
	}
	return &verdictRepositoryAdapter{repo: repo, now: now}
}

func (a *verdictRepositoryAdapter) GetVerdict(ctx context.Context, start, end time.Time) (verdict.Verdict, error) {
	stored, err := a.repo.GetWeek(ctx, start, end)
	if err != nil {
		return verdict.Verdict{}, err
	}
	return toVerdict(stored), nil
}

func (a *verdictRepositoryAdapter) SaveVerdict(ctx context.Context, v verdict.Verdict) error {
	return a.repo.PutWeek(ctx, toPersistenceWeek(v, a.now().UTC()))
}

func (a *verdictRepositoryAdapter) ListVerdicts(ctx context.Context, limit int) ([]verdict.Verdict, error) {
	stored, err := a.repo.ListRecentWeeks(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}
	verdicts := make([]verdict.Verdict, 0, len(stored))
	for _, w := range stored {
		verdicts = append(verdicts, toVerdict(w))
	}
	return verdicts, nil
}

func (a *verdictRepositoryAdapter) ClearVerdicts(ctx context.Context) error {
	return a.repo.DeleteAllWeeks(ctx)
}

func toApplicationCommitment(model persistence.Commitment) (application.Commitment, error) {
	rule, err := week.NewRule(model.DayOfWeek, model.CutoffTime, model.Timezone, model.TagPattern)
	if err != nil {
		return application.Commitment{}, fmt.Errorf("stored cutoff rule is invalid: %w", err)
	}
	return application.Commitment{
		ID:         model.ID,
		Repository: release.Repository{Owner: model.RepositoryOwner, Name: model.RepositoryName},
		Rule:       rule,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}, nil
}

func toPersistenceCommitment(commitment application.Commitment) persistence.Commitment {
	var pattern *string
	if commitment.Rule.HasTagPattern() {
		p := commitment.Rule.TagPattern
		pattern = &p
	}
	return persistence.Commitment{
		ID:              commitment.ID,
		RepositoryOwner: commitment.Repository.Owner,
		RepositoryName:  commitment.Repository.Name,
		DayOfWeek:       int(commitment.Rule.Day),
		CutoffTime:      commitment.Rule.Clock(),
		Timezone:        commitment.Rule.Timezone,
		TagPattern:      pattern,
		CreatedAt:       commitment.CreatedAt,
		UpdatedAt:       commitment.UpdatedAt,
	}
}

func toVerdict(model persistence.Week) verdict.Verdict {
	v := verdict.Verdict{
		WeekStart:   model.WeekStart,
		WeekEnd:     model.WeekEnd,
		Status:      verdict.Status(model.Status),
		EvidenceURL: cloneString(model.EvidenceURL),
		Note:        cloneString(model.Note),
		EvaluatedAt: model.EvaluatedAt,
	}
	if model.Proof != nil {
		v.Proof = &verdict.Proof{
			ID:          model.Proof.ReleaseID,
			Tag:         model.Proof.Tag,
			URL:         model.Proof.URL,
			PublishedAt: model.Proof.PublishedAt,
			Name:        cloneString(model.Proof.Name),
			BodyLength:  model.Proof.BodyLength,
		}
	}
	return v
}

func toPersistenceWeek(v verdict.Verdict, updatedAt time.Time) persistence.Week {
	model := persistence.Week{
		WeekStart:   v.WeekStart,
		WeekEnd:     v.WeekEnd,
		Status:      string(v.Status),
		EvidenceURL: cloneString(v.EvidenceURL),
		Note:        cloneString(v.Note),
		EvaluatedAt: v.EvaluatedAt,
		UpdatedAt:   updatedAt,
	}
	if v.Proof != nil {
		model.Proof = &persistence.Proof{
			ReleaseID:   v.Proof.ID,
			Tag:         v.Proof.Tag,
			URL:         v.Proof.URL,
			PublishedAt: v.Proof.PublishedAt,
			Name:        cloneString(v.Proof.Name),
			BodyLength:  v.Proof.BodyLength,
		}
	}
	return model
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

// scorecardOutput is the JSON printed by -evaluate-once.
type scorecardOutput struct {
	Repository  string       `json:"repository"`
	Rule        string       `json:"rule"`
	GeneratedAt time.Time    `json:"generated_at"`
	Weeks       []weekOutput `json:"weeks"`
	Kept        int          `json:"kept"`
	Total       int          `json:"total"`
}

type weekOutput struct {
	Label  string `json:"label"`
	Range  string `json:"range"`
	Status string `json:"status"`
	Tag    string `json:"tag,omitempty"`
}

func newScorecardOutput(card application.Scorecard) scorecardOutput {
	out := scorecardOutput{
		Repository:  card.Commitment.Repository.String(),
		Rule:        card.Commitment.Rule.Describe(),
		GeneratedAt: card.GeneratedAt,
		Weeks:       make([]weekOutput, 0, len(card.Weeks)),
		Kept:        card.Summary.Kept(),
		Total:       card.Summary.Total,
	}
	for _, entry := range card.Weeks {
		w := weekOutput{
			Label:  entry.Window.Label,
			Range:  week.FormatRange(entry.Window.Start, entry.Window.End, card.Commitment.Rule.Location),
			Status: "none",
		}
		if entry.Verdict != nil {
			w.Status = string(entry.Verdict.Status)
			if entry.Verdict.Proof != nil {
				w.Tag = entry.Verdict.Proof.Tag
			}
		}
		out.Weeks = append(out.Weeks, w)
	}
	return out
}
