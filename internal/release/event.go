package release

import (
	"context"
	"time"
)

// Event is a published release as reported by the release source.
type Event struct {
	ID          int64     `json:"id"`
	TagName     string    `json:"tag_name"`
	Name        *string   `json:"name"`
	URL         string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	BodyLength  int       `json:"body_length"`
}

// Source fetches the releases of a repository.
//
// Implementations exclude drafts before returning and report failures as
// *FetchError.
type Source interface {
	FetchReleases(ctx context.Context, repo Repository) ([]Event, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, repo Repository) ([]Event, error)

// FetchReleases calls f.
func (f SourceFunc) FetchReleases(ctx context.Context, repo Repository) ([]Event, error) {
	return f(ctx, repo)
}

func withoutDrafts(events []Event) []Event {
	published := make([]Event, 0, len(events))
	for _, event := range events {
		if event.Draft {
			continue
		}
		published = append(published, event)
	}
	return published
}

func cloneEvents(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, event := range events {
		out[i] = event
		if event.Name != nil {
			name := *event.Name
			out[i].Name = &name
		}
	}
	return out
}
