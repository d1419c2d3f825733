package release

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GitHubClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGitHubClient(GitHubConfig{
		BaseURL: server.URL,
		Token:   "secret-token",
		Timeout: 2 * time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestGitHubClientFetchReleases(t *testing.T) {
	t.Parallel()

	repo := Repository{Owner: "octo", Name: "widgets"}

	t.Run("decodes published releases and drops drafts", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/repos/octo/widgets/releases" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			if r.URL.Query().Get("per_page") != "100" {
				t.Errorf("expected per_page=100, got %q", r.URL.RawQuery)
			}
			if got := r.Header.Get("Accept"); got != "application/vnd.github.v3+json" {
				t.Errorf("unexpected accept header %q", got)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
				t.Errorf("unexpected authorization header %q", got)
			}
			if r.Header.Get("User-Agent") == "" {
				t.Errorf("expected a user agent")
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[
				{"id": 3, "tag_name": "v1.2.0", "name": "Widgets 1.2", "html_url": "https://github.com/octo/widgets/releases/tag/v1.2.0", "published_at": "2024-03-14T09:00:00Z", "body": "héllo", "draft": false, "prerelease": true},
				{"id": 2, "tag_name": "v1.1.0-draft", "html_url": "https://github.com/octo/widgets/releases/tag/untagged", "published_at": null, "draft": true},
				{"id": 1, "tag_name": "v1.1.0", "name": null, "html_url": "https://github.com/octo/widgets/releases/tag/v1.1.0", "published_at": "2024-03-01T12:30:00Z", "body": null, "draft": false}
			]`)
		})

		events, err := client.FetchReleases(context.Background(), repo)
		if err != nil {
			t.Fatalf("FetchReleases returned error: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d: %#v", len(events), events)
		}
		first := events[0]
		if first.ID != 3 || first.TagName != "v1.2.0" || !first.Prerelease {
			t.Fatalf("unexpected first event: %#v", first)
		}
		if first.Name == nil || *first.Name != "Widgets 1.2" {
			t.Fatalf("expected name to be decoded, got %v", first.Name)
		}
		if first.BodyLength != 5 {
			t.Fatalf("expected body length 5, got %d", first.BodyLength)
		}
		if !first.PublishedAt.Equal(time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected published_at: %s", first.PublishedAt)
		}
		if events[1].Name != nil || events[1].BodyLength != 0 {
			t.Fatalf("expected empty optional fields, got %#v", events[1])
		}
	})

	t.Run("drops drafts that carry a publish date", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[
				{"id": 9, "tag_name": "v9.0.0", "html_url": "https://github.com/octo/widgets/releases/tag/v9.0.0", "published_at": "2024-03-12T00:00:00Z", "draft": true},
				{"id": 8, "tag_name": "v8.0.0", "html_url": "https://github.com/octo/widgets/releases/tag/v8.0.0", "published_at": "2024-03-11T00:00:00Z", "draft": false}
			]`)
		})

		events, err := client.FetchReleases(context.Background(), repo)
		if err != nil {
			t.Fatalf("FetchReleases returned error: %v", err)
		}
		if len(events) != 1 || events[0].ID != 8 {
			t.Fatalf("expected only the published release, got %#v", events)
		}
		for _, event := range events {
			if event.Draft {
				t.Fatalf("expected no drafts, got %#v", event)
			}
		}
	})

	cases := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		reason  Reason
		target  error
	}{
		{name: "not found", status: http.StatusNotFound, reason: ReasonNotFound, target: ErrNotFound},
		{name: "rate limited 403", status: http.StatusForbidden, headers: map[string]string{"X-RateLimit-Remaining": "0"}, reason: ReasonRateLimited, target: ErrRateLimited},
		{name: "rate limited 429", status: http.StatusTooManyRequests, reason: ReasonRateLimited, target: ErrRateLimited},
		{name: "forbidden with quota left", status: http.StatusForbidden, headers: map[string]string{"X-RateLimit-Remaining": "12"}, reason: ReasonTransient, target: ErrTransient},
		{name: "server error", status: http.StatusInternalServerError, reason: ReasonTransient, target: ErrTransient},
		{name: "malformed body", status: http.StatusOK, body: `{"not": "a list"}`, reason: ReasonTransient, target: ErrTransient},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := client.FetchReleases(context.Background(), repo)
			var fErr *FetchError
			if !errors.As(err, &fErr) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fErr.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, fErr.Reason)
			}
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected errors.Is(%v) to hold", tc.target)
			}
			if ReasonOf(err) != tc.reason {
				t.Fatalf("ReasonOf returned %s", ReasonOf(err))
			}
		})
	}

	t.Run("reports transport failures as transient", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		base := server.URL
		server.Close()

		client := NewGitHubClient(GitHubConfig{BaseURL: base, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
		_, err := client.FetchReleases(context.Background(), repo)
		if !errors.Is(err, ErrTransient) {
			t.Fatalf("expected transient error, got %v", err)
		}
	})
}

func TestFetchErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[string]*FetchError{
		"Repository not found. Make sure it exists and is public.":                 {Reason: ReasonNotFound},
		"GitHub API rate limit exceeded. Try again later or add an evidence link.": {Reason: ReasonRateLimited},
		"GitHub API error: 502":    {Reason: ReasonTransient, StatusCode: 502},
		"Failed to fetch releases": {Reason: ReasonTransient},
	}
	for want, fErr := range cases {
		if got := fErr.Message(); got != want {
			t.Fatalf("Message() = %q, want %q", got, want)
		}
	}
	if ReasonOf(errors.New("boom")) != ReasonTransient {
		t.Fatalf("expected plain errors to default to transient")
	}
}
