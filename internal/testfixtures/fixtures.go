package testfixtures

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/example/proof-of-ship/internal/application"
	"github.com/example/proof-of-ship/internal/persistence"
	"github.com/example/proof-of-ship/internal/release"
	"github.com/example/proof-of-ship/internal/verdict"
	"github.com/example/proof-of-ship/internal/week"
)

// referenceTime is a Thursday; with the reference rule the current window is
// [2024-03-10T23:59Z, 2024-03-17T23:59Z).
var referenceTime = time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical "now" used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceRule returns the Sunday 23:59 UTC rule the fixtures are aligned to.
func ReferenceRule() week.Rule {
	rule, err := week.NewRule(0, "23:59", "UTC", nil)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: reference rule: %v", err))
	}
	return rule
}

// ReferenceWindow returns the window index weeks away from the current one at
// ReferenceTime under ReferenceRule. Index 0 is the current window.
func ReferenceWindow(index int) week.Window {
	windows := week.Compute(ReferenceRule(), referenceTime, -index)
	return windows[len(windows)-1]
}

// ----------------------------- Week fixtures -----------------------------

// WeekFixture is a deterministic week record that can be materialised for
// application or persistence tests.
type WeekFixture struct {
	Start       time.Time
	End         time.Time
	Status      verdict.Status
	Proof       *verdict.Proof
	EvidenceURL *string
	Note        *string
	EvaluatedAt time.Time
}

// WeekOption configures the generated week fixture.
type WeekOption func(*WeekFixture)

// NewWeekFixture returns a failed week aligned to ReferenceWindow(index).
func NewWeekFixture(index int, opts ...WeekOption) WeekFixture {
	window := ReferenceWindow(index)
	fixture := WeekFixture{
		Start:       window.Start,
		End:         window.End,
		Status:      verdict.StatusFail,
		EvaluatedAt: referenceTime,
	}
	if window.IsCurrent {
		fixture.Status = verdict.StatusPending
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithWeekBounds overrides the window bounds.
func WithWeekBounds(start, end time.Time) WeekOption {
	return func(f *WeekFixture) {
		f.Start = start
		f.End = end
	}
}

// WithWeekPass marks the week passed by the release tagged tag.
func WithWeekPass(id int64, tag string) WeekOption {
	return func(f *WeekFixture) {
		f.Status = verdict.StatusPass
		f.Proof = &verdict.Proof{
			ID:          id,
			Tag:         tag,
			URL:         fmt.Sprintf("https://github.com/acme/app/releases/tag/%s", tag),
			PublishedAt: f.Start.Add(36 * time.Hour),
			BodyLength:  42,
		}
	}
}

// WithWeekStatus overrides the status.
func WithWeekStatus(status verdict.Status) WeekOption {
	return func(f *WeekFixture) {
		f.Status = status
	}
}

// WithWeekEvidence attaches an evidence link.
func WithWeekEvidence(url string) WeekOption {
	return func(f *WeekFixture) {
		f.EvidenceURL = &url
	}
}

// WithWeekNote attaches a note.
func WithWeekNote(note string) WeekOption {
	return func(f *WeekFixture) {
		f.Note = &note
	}
}

// WithWeekEvaluatedAt overrides the evaluation instant.
func WithWeekEvaluatedAt(t time.Time) WeekOption {
	return func(f *WeekFixture) {
		f.EvaluatedAt = t
	}
}

// Verdict materialises the fixture as a verdict.
func (f WeekFixture) Verdict() verdict.Verdict {
	v := verdict.Verdict{
		WeekStart:   f.Start,
		WeekEnd:     f.End,
		Status:      f.Status,
		EvidenceURL: f.EvidenceURL,
		Note:        f.Note,
		EvaluatedAt: f.EvaluatedAt,
	}
	if f.Proof != nil {
		proof := *f.Proof
		v.Proof = &proof
	}
	return v
}

// Persistence materialises the fixture as a stored week.
func (f WeekFixture) Persistence() persistence.Week {
	w := persistence.Week{
		WeekStart:   f.Start,
		WeekEnd:     f.End,
		Status:      string(f.Status),
		EvidenceURL: f.EvidenceURL,
		Note:        f.Note,
		EvaluatedAt: f.EvaluatedAt,
		UpdatedAt:   f.EvaluatedAt,
	}
	if f.Proof != nil {
		w.Proof = &persistence.Proof{
			ReleaseID:   f.Proof.ID,
			Tag:         f.Proof.Tag,
			URL:         f.Proof.URL,
			PublishedAt: f.Proof.PublishedAt,
			Name:        f.Proof.Name,
			BodyLength:  f.Proof.BodyLength,
		}
	}
	return persistence.CloneWeek(w)
}

// --------------------------- Release fixtures ----------------------------

// NewRelease returns a published release of acme/app.
func NewRelease(id int64, tag string, publishedAt time.Time) release.Event {
	name := "Release " + tag
	return release.Event{
		ID:          id,
		TagName:     tag,
		Name:        &name,
		URL:         fmt.Sprintf("https://github.com/acme/app/releases/tag/%s", tag),
		PublishedAt: publishedAt.UTC(),
		BodyLength:  len(tag) * 10,
	}
}

// -------------------------- Commitment fixtures --------------------------

// CommitmentFixture is a deterministic commitment.
type CommitmentFixture struct {
	ID         string
	Owner      string
	Name       string
	DayOfWeek  int
	CutoffTime string
	Timezone   string
	TagPattern *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CommitmentOption configures the generated commitment fixture.
type CommitmentOption func(*CommitmentFixture)

// NewCommitmentFixture returns acme/app with the reference rule.
func NewCommitmentFixture(opts ...CommitmentOption) CommitmentFixture {
	created := referenceTime.Add(-30 * 24 * time.Hour)
	fixture := CommitmentFixture{
		ID:         "commitment-1",
		Owner:      "acme",
		Name:       "app",
		DayOfWeek:  0,
		CutoffTime: "23:59",
		Timezone:   "UTC",
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCommitmentRepository overrides the repository.
func WithCommitmentRepository(owner, name string) CommitmentOption {
	return func(f *CommitmentFixture) {
		f.Owner = owner
		f.Name = name
	}
}

// WithCommitmentCutoff overrides the cutoff rule fields.
func WithCommitmentCutoff(day int, clock, timezone string) CommitmentOption {
	return func(f *CommitmentFixture) {
		f.DayOfWeek = day
		f.CutoffTime = clock
		f.Timezone = timezone
	}
}

// WithCommitmentTagPattern sets the tag filter.
func WithCommitmentTagPattern(pattern string) CommitmentOption {
	return func(f *CommitmentFixture) {
		f.TagPattern = &pattern
	}
}

// Application materialises the fixture as an application commitment. It
// panics when the rule fields are invalid.
func (f CommitmentFixture) Application() application.Commitment {
	rule, err := week.NewRule(f.DayOfWeek, f.CutoffTime, f.Timezone, f.TagPattern)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: commitment rule: %v", err))
	}
	return application.Commitment{
		ID:         f.ID,
		Repository: release.Repository{Owner: f.Owner, Name: f.Name},
		Rule:       rule,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Persistence materialises the fixture as a stored commitment.
func (f CommitmentFixture) Persistence() persistence.Commitment {
	return persistence.CloneCommitment(persistence.Commitment{
		ID:              f.ID,
		RepositoryOwner: f.Owner,
		RepositoryName:  f.Name,
		DayOfWeek:       f.DayOfWeek,
		CutoffTime:      f.CutoffTime,
		Timezone:        f.Timezone,
		TagPattern:      f.TagPattern,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	})
}
