// Package verdict decides the outcome of each weekly window from the releases
// published inside it and the outcome recorded by earlier passes.
package verdict

import (
	"errors"
	"fmt"
	"time"
)

// Status is the outcome of a window.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusGrace   Status = "grace"
	StatusPending Status = "pending"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusGrace, StatusPending:
		return true
	}
	return false
}

// Terminal reports whether the status can no longer change on its own.
func (s Status) Terminal() bool {
	return s == StatusPass || s == StatusFail
}

// Proof is the snapshot of the release that satisfied a window.
type Proof struct {
	ID          int64     `json:"id"`
	Tag         string    `json:"tag"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Name        *string   `json:"name,omitempty"`
	BodyLength  int       `json:"body_length"`
}

// Verdict is the recorded outcome of one window.
type Verdict struct {
	WeekStart   time.Time
	WeekEnd     time.Time
	Status      Status
	Proof       *Proof
	EvidenceURL *string
	Note        *string
	EvaluatedAt time.Time
}

var (
	// ErrUnknownStatus is returned by Validate for an unrecognised status.
	ErrUnknownStatus = errors.New("verdict: unknown status")
	// ErrMissingProof is returned by Validate for a pass without proof.
	ErrMissingProof = errors.New("verdict: pass requires proof")
	// ErrInvalidRange is returned by Validate when the window bounds are inverted.
	ErrInvalidRange = errors.New("verdict: week end must be after week start")
)

// Validate checks the structural invariants of a verdict.
func (v Verdict) Validate() error {
	if !v.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, v.Status)
	}
	if !v.WeekEnd.After(v.WeekStart) {
		return ErrInvalidRange
	}
	if v.Status == StatusPass && v.Proof == nil {
		return ErrMissingProof
	}
	return nil
}

// HasEvidence reports whether a non-empty evidence URL is attached.
func (v Verdict) HasEvidence() bool {
	return v.EvidenceURL != nil && *v.EvidenceURL != ""
}

func cloneProof(p *Proof) *Proof {
	if p == nil {
		return nil
	}
	out := *p
	if p.Name != nil {
		name := *p.Name
		out.Name = &name
	}
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
