package persistence

import "time"

// Commitment is the single connected repository and its weekly cutoff.
type Commitment struct {
	ID              string
	RepositoryOwner string
	RepositoryName  string
	DayOfWeek       int
	CutoffTime      string
	Timezone        string
	TagPattern      *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Proof is the stored snapshot of the release that passed a week.
type Proof struct {
	ReleaseID   int64     `json:"release_id"`
	Tag         string    `json:"tag"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Name        *string   `json:"name,omitempty"`
	BodyLength  int       `json:"body_length"`
}

// Week is the stored verdict of one week window.
type Week struct {
	WeekStart   time.Time
	WeekEnd     time.Time
	Status      string
	Proof       *Proof
	EvidenceURL *string
	Note        *string
	EvaluatedAt time.Time
	UpdatedAt   time.Time
}

// CloneWeek returns a deep copy of w.
func CloneWeek(w Week) Week {
	out := w
	if w.Proof != nil {
		proof := *w.Proof
		if w.Proof.Name != nil {
			name := *w.Proof.Name
			proof.Name = &name
		}
		out.Proof = &proof
	}
	out.EvidenceURL = cloneString(w.EvidenceURL)
	out.Note = cloneString(w.Note)
	return out
}

// CloneCommitment returns a deep copy of c.
func CloneCommitment(c Commitment) Commitment {
	out := c
	out.TagPattern = cloneString(c.TagPattern)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
