package application

import (
	"time"

	"github.com/example/proof-of-ship/internal/release"
	"github.com/example/proof-of-ship/internal/verdict"
	"github.com/example/proof-of-ship/internal/week"
)

// Commitment is the connected repository together with its weekly cutoff rule.
type Commitment struct {
	ID         string
	Repository release.Repository
	Rule       week.Rule
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CutoffInput captures caller provided cutoff rule fields.
type CutoffInput struct {
	DayOfWeek  int
	CutoffTime string
	Timezone   string
	TagPattern *string
}

// ConnectParams wraps the data required to connect a repository.
type ConnectParams struct {
	Repository string
	Cutoff     CutoffInput
}

// EvidenceParams wraps an evidence write for the window starting at WeekStart.
type EvidenceParams struct {
	WeekStart   time.Time
	EvidenceURL string
	Note        string
}

// WindowVerdict pairs a computed window with its recorded verdict, if any.
type WindowVerdict struct {
	Window  week.Window
	Verdict *verdict.Verdict
}

// EvaluationResult is the outcome of one evaluation pass.
type EvaluationResult struct {
	Commitment        Commitment
	EvaluatedAt       time.Time
	ReleaseCount      int
	InvalidTagPattern bool
	Weeks             []WindowVerdict
}

// Scorecard is the read model of the current and recent windows.
type Scorecard struct {
	Commitment  Commitment
	GeneratedAt time.Time
	Weeks       []WindowVerdict
	// Summary counts the completed windows only.
	Summary verdict.Summary
}

// Current returns the in-progress window entry.
func (s Scorecard) Current() (WindowVerdict, bool) {
	for _, w := range s.Weeks {
		if w.Window.IsCurrent {
			return w, true
		}
	}
	return WindowVerdict{}, false
}
