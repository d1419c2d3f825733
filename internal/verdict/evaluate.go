package verdict

import (
	"strings"
	"time"

	"github.com/example/proof-of-ship/internal/release"
	"github.com/example/proof-of-ship/internal/week"
)

// FindQualifying returns the first event, in input order, published inside
// window whose tag passes filter. Drafts are expected to be removed by the
// release source.
func FindQualifying(window week.Window, events []release.Event, filter TagFilter) (release.Event, bool) {
	for _, event := range events {
		if !window.Contains(event.PublishedAt) {
			continue
		}
		if !filter.Match(event.TagName) {
			continue
		}
		return event, true
	}
	return release.Event{}, false
}

// ProofFrom snapshots event as proof.
func ProofFrom(event release.Event) *Proof {
	proof := &Proof{
		ID:          event.ID,
		Tag:         event.TagName,
		URL:         event.URL,
		PublishedAt: event.PublishedAt.UTC(),
		BodyLength:  event.BodyLength,
	}
	if event.Name != nil {
		name := *event.Name
		proof.Name = &name
	}
	return proof
}

// Evaluate decides the verdict for window.
//
// Precedence, first match wins: a qualifying release passes the window with
// fresh proof; a prior pass with proof stays a pass; the in-progress window is
// pending; a prior grace or attached evidence is grace; anything else fails.
// Evidence and note always carry over from prior, as does proof when no new
// release qualifies.
func Evaluate(window week.Window, events []release.Event, filter TagFilter, prior *Verdict, now time.Time) Verdict {
	out := Verdict{
		WeekStart:   window.Start,
		WeekEnd:     window.End,
		EvaluatedAt: now,
	}
	if prior != nil {
		out.Proof = cloneProof(prior.Proof)
		out.EvidenceURL = cloneString(prior.EvidenceURL)
		out.Note = cloneString(prior.Note)
	}

	if event, ok := FindQualifying(window, events, filter); ok {
		out.Status = StatusPass
		out.Proof = ProofFrom(event)
		return out
	}

	switch {
	case prior != nil && prior.Status == StatusPass && prior.Proof != nil:
		out.Status = StatusPass
	case window.IsCurrent:
		out.Status = StatusPending
	case prior != nil && (prior.Status == StatusGrace || prior.HasEvidence()):
		out.Status = StatusGrace
	default:
		out.Status = StatusFail
	}
	return out
}

// Settle resolves a pending verdict stored for a window that is no longer in
// progress: grace when it carries evidence, fail otherwise. Any other verdict
// is returned unchanged.
func Settle(window week.Window, v Verdict) Verdict {
	if v.Status != StatusPending || window.IsCurrent {
		return v
	}
	v.Status = StatusFail
	if v.HasEvidence() {
		v.Status = StatusGrace
	}
	return v
}

// AttachEvidence records an evidence link and note on window without looking
// at releases.
//
// Blank values clear the field. The prior status is kept except that a failed
// window becomes grace once a link is attached, and a stale pending record of a
// completed window is settled with the new evidence.
//
// Without a prior record the window is pending while in progress, grace when
// completed with a link, and failed otherwise. This deliberately does not
// default to grace: a week nobody evaluated has no verdict yet, and a link is
// what earns the grace.
func AttachEvidence(window week.Window, prior *Verdict, evidenceURL, note string, now time.Time) Verdict {
	out := Verdict{
		WeekStart:   window.Start,
		WeekEnd:     window.End,
		EvidenceURL: optional(evidenceURL),
		Note:        optional(note),
		EvaluatedAt: now,
	}
	hasURL := out.EvidenceURL != nil

	if prior == nil {
		switch {
		case window.IsCurrent:
			out.Status = StatusPending
		case hasURL:
			out.Status = StatusGrace
		default:
			out.Status = StatusFail
		}
		return out
	}

	out.Proof = cloneProof(prior.Proof)
	out.Status = prior.Status
	switch {
	case prior.Status == StatusFail && hasURL:
		out.Status = StatusGrace
	case prior.Status == StatusPending:
		// The cutoff may have passed since the last evaluation.
		out = Settle(window, out)
	}
	return out
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
