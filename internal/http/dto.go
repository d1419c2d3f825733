package http

import (
	"time"

	"github.com/example/proof-of-ship/internal/application"
	"github.com/example/proof-of-ship/internal/verdict"
	"github.com/example/proof-of-ship/internal/week"
)

type cutoffRequest struct {
	DayOfWeek  *int    `json:"day_of_week"`
	CutoffTime string  `json:"cutoff_time"`
	Timezone   string  `json:"timezone"`
	TagPattern *string `json:"tag_pattern"`
}

type connectRequest struct {
	Repository string `json:"repository"`
	cutoffRequest
}

type evidenceRequest struct {
	EvidenceURL string `json:"evidence_url"`
	Note        string `json:"note"`
}

type commitmentDTO struct {
	ID            string    `json:"id"`
	Repository    string    `json:"repository"`
	RepositoryURL string    `json:"repository_url"`
	DayOfWeek     int       `json:"day_of_week"`
	DayName       string    `json:"day_name"`
	CutoffTime    string    `json:"cutoff_time"`
	Timezone      string    `json:"timezone"`
	TagPattern    *string   `json:"tag_pattern"`
	Description   string    `json:"description"`
	NextCutoff    time.Time `json:"next_cutoff"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type proofDTO struct {
	ID          int64     `json:"id"`
	Tag         string    `json:"tag"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Name        *string   `json:"name,omitempty"`
	BodyLength  int       `json:"body_length"`
}

type weekDTO struct {
	Label       string     `json:"label"`
	Range       string     `json:"range"`
	WeekStart   time.Time  `json:"week_start"`
	WeekEnd     time.Time  `json:"week_end"`
	IsCurrent   bool       `json:"is_current"`
	Status      *string    `json:"status"`
	Proof       *proofDTO  `json:"proof,omitempty"`
	EvidenceURL *string    `json:"evidence_url,omitempty"`
	Note        *string    `json:"note,omitempty"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`
}

type summaryDTO struct {
	Pass  int `json:"pass"`
	Grace int `json:"grace"`
	Fail  int `json:"fail"`
	Kept  int `json:"kept"`
	Total int `json:"total"`
}

type evaluationResponse struct {
	EvaluatedAt       time.Time `json:"evaluated_at"`
	ReleaseCount      int       `json:"release_count"`
	InvalidTagPattern bool      `json:"invalid_tag_pattern"`
	Weeks             []weekDTO `json:"weeks"`
}

type scorecardResponse struct {
	Commitment  commitmentDTO `json:"commitment"`
	GeneratedAt time.Time     `json:"generated_at"`
	Weeks       []weekDTO     `json:"weeks"`
	Summary     summaryDTO    `json:"summary"`
}

func (c cutoffRequest) toInput() application.CutoffInput {
	day := -1
	if c.DayOfWeek != nil {
		day = *c.DayOfWeek
	}
	return application.CutoffInput{
		DayOfWeek:  day,
		CutoffTime: c.CutoffTime,
		Timezone:   c.Timezone,
		TagPattern: c.TagPattern,
	}
}

func newCommitmentDTO(c application.Commitment, now time.Time) commitmentDTO {
	var pattern *string
	if c.Rule.HasTagPattern() {
		p := c.Rule.TagPattern
		pattern = &p
	}
	return commitmentDTO{
		ID:            c.ID,
		Repository:    c.Repository.String(),
		RepositoryURL: c.Repository.URL(),
		DayOfWeek:     int(c.Rule.Day),
		DayName:       week.DayName(c.Rule.Day),
		CutoffTime:    c.Rule.Clock(),
		Timezone:      c.Rule.Timezone,
		TagPattern:    pattern,
		Description:   c.Rule.Describe(),
		NextCutoff:    week.NextCutoff(c.Rule, now),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func newWeekDTO(entry application.WindowVerdict, loc *time.Location) weekDTO {
	dto := weekDTO{
		Label:     entry.Window.Label,
		Range:     week.FormatRange(entry.Window.Start, entry.Window.End, loc),
		WeekStart: entry.Window.Start,
		WeekEnd:   entry.Window.End,
		IsCurrent: entry.Window.IsCurrent,
	}
	if entry.Verdict == nil {
		return dto
	}

	v := entry.Verdict
	status := string(v.Status)
	evaluatedAt := v.EvaluatedAt
	dto.Status = &status
	dto.EvidenceURL = v.EvidenceURL
	dto.Note = v.Note
	dto.EvaluatedAt = &evaluatedAt
	if v.Proof != nil {
		dto.Proof = &proofDTO{
			ID:          v.Proof.ID,
			Tag:         v.Proof.Tag,
			URL:         v.Proof.URL,
			PublishedAt: v.Proof.PublishedAt,
			Name:        v.Proof.Name,
			BodyLength:  v.Proof.BodyLength,
		}
	}
	return dto
}

func newWeekDTOs(entries []application.WindowVerdict, loc *time.Location) []weekDTO {
	out := make([]weekDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, newWeekDTO(entry, loc))
	}
	return out
}

func newSummaryDTO(s verdict.Summary) summaryDTO {
	return summaryDTO{
		Pass:  s.Pass,
		Grace: s.Grace,
		Fail:  s.Fail,
		Kept:  s.Kept(),
		Total: s.Total,
	}
}

func newVerdictWeekDTO(v verdict.Verdict, loc *time.Location) weekDTO {
	window := week.Window{
		Start:     v.WeekStart,
		End:       v.WeekEnd,
		IsCurrent: v.Status == verdict.StatusPending,
	}
	return newWeekDTO(application.WindowVerdict{Window: window, Verdict: &v}, loc)
}
