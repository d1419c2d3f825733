package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultGitHubAPIURL is the public GitHub REST endpoint.
	DefaultGitHubAPIURL = "https://api.github.com"
	defaultUserAgent    = "proof-of-ship"
	releasesPerPage     = 100
	maxResponseBytes    = 8 << 20
)

// GitHubConfig configures a GitHubClient.
type GitHubConfig struct {
	BaseURL    string
	Token      string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// GitHubClient lists releases through the GitHub REST API.
type GitHubClient struct {
	baseURL   string
	token     string
	userAgent string
	timeout   time.Duration
	http      *http.Client
	logger    *slog.Logger
}

// NewGitHubClient constructs a client, applying defaults for empty fields.
func NewGitHubClient(cfg GitHubConfig) *GitHubClient {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultGitHubAPIURL
	}
	agent := cfg.UserAgent
	if agent == "" {
		agent = defaultUserAgent
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHubClient{
		baseURL:   base,
		token:     strings.TrimSpace(cfg.Token),
		userAgent: agent,
		timeout:   cfg.Timeout,
		http:      client,
		logger:    logger.With("component", "GitHubClient"),
	}
}

type githubRelease struct {
	ID          int64      `json:"id"`
	TagName     string     `json:"tag_name"`
	Name        *string    `json:"name"`
	HTMLURL     string     `json:"html_url"`
	PublishedAt *time.Time `json:"published_at"`
	Body        *string    `json:"body"`
	Draft       bool       `json:"draft"`
	Prerelease  bool       `json:"prerelease"`
}

// FetchReleases returns the most recent page of published releases, newest first
// as ordered by the API. Drafts are removed.
func (c *GitHubClient) FetchReleases(ctx context.Context, repo Repository) ([]Event, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d",
		c.baseURL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), releasesPerPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Reason: ReasonTransient, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	logger := c.logger.With("repository", repo.String())
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		logger.WarnContext(ctx, "release request failed", "error", err)
		return nil, &FetchError{Reason: ReasonTransient, Err: err}
	}
	defer resp.Body.Close()

	if fErr := classifyResponse(resp); fErr != nil {
		logger.WarnContext(ctx, "release request rejected", "status", resp.StatusCode, "reason", fErr.Reason)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fErr
	}

	var payload []githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, &FetchError{Reason: ReasonTransient, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode releases: %w", err)}
	}

	events := make([]Event, 0, len(payload))
	for _, item := range payload {
		if item.PublishedAt == nil && !item.Draft {
			continue
		}
		events = append(events, toEvent(item))
	}
	events = withoutDrafts(events)

	logger.DebugContext(ctx, "releases fetched", "count", len(events), "duration", time.Since(start))
	return events, nil
}

func classifyResponse(resp *http.Response) *FetchError {
	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0",
		status == http.StatusTooManyRequests:
		return &FetchError{Reason: ReasonRateLimited, StatusCode: status, Err: ErrRateLimited}
	case status == http.StatusNotFound:
		return &FetchError{Reason: ReasonNotFound, StatusCode: status, Err: ErrNotFound}
	default:
		return &FetchError{Reason: ReasonTransient, StatusCode: status, Err: errors.New(http.StatusText(status))}
	}
}

func toEvent(item githubRelease) Event {
	event := Event{
		ID:         item.ID,
		TagName:    item.TagName,
		Name:       item.Name,
		URL:        item.HTMLURL,
		Draft:      item.Draft,
		Prerelease: item.Prerelease,
	}
	if item.PublishedAt != nil {
		event.PublishedAt = item.PublishedAt.UTC()
	}
	if item.Body != nil {
		event.BodyLength = utf8.RuneCountInString(*item.Body)
	}
	return event
}
