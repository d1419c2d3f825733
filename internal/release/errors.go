package release

import (
	"errors"
	"fmt"
)

// Reason classifies why a fetch failed.
type Reason string

const (
	// ReasonNotFound means the repository does not exist or is private.
	ReasonNotFound Reason = "not_found"
	// ReasonRateLimited means the API quota is exhausted.
	ReasonRateLimited Reason = "rate_limited"
	// ReasonTransient covers network failures and unexpected responses.
	ReasonTransient Reason = "transient"
)

var (
	// ErrNotFound matches fetch errors with ReasonNotFound.
	ErrNotFound = errors.New("release: repository not found")
	// ErrRateLimited matches fetch errors with ReasonRateLimited.
	ErrRateLimited = errors.New("release: rate limited")
	// ErrTransient matches fetch errors with ReasonTransient.
	ErrTransient = errors.New("release: transient failure")
)

// FetchError is returned by Source implementations when releases cannot be listed.
type FetchError struct {
	Reason     Reason
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("release fetch failed (%s, status %d): %v", e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("release fetch failed (%s): %v", e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel that corresponds to the failure reason.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Reason == ReasonNotFound
	case ErrRateLimited:
		return e.Reason == ReasonRateLimited
	case ErrTransient:
		return e.Reason == ReasonTransient
	}
	return false
}

// Message returns the user facing explanation for the failure.
func (e *FetchError) Message() string {
	switch e.Reason {
	case ReasonNotFound:
		return "Repository not found. Make sure it exists and is public."
	case ReasonRateLimited:
		return "GitHub API rate limit exceeded. Try again later or add an evidence link."
	default:
		if e.StatusCode != 0 {
			return fmt.Sprintf("GitHub API error: %d", e.StatusCode)
		}
		return "Failed to fetch releases"
	}
}

// ReasonOf extracts the failure reason from err, defaulting to ReasonTransient.
func ReasonOf(err error) Reason {
	var fErr *FetchError
	if errors.As(err, &fErr) {
		return fErr.Reason
	}
	return ReasonTransient
}
