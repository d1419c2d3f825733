package application

import (
	"errors"
	"sort"
	"strings"

	"github.com/example/proof-of-ship/internal/release"
)

var (
	// ErrUnauthorized is returned when a caller presents an unknown API token.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrNoCommitment is returned when no repository has been connected yet.
	ErrNoCommitment = errors.New("application: no commitment configured")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another field error map into the receiver.
func (v *ValidationError) merge(fields map[string]string) {
	for field, msg := range fields {
		v.add(field, msg)
	}
}

// FetchFailedError reports that an evaluation pass was aborted because the
// release source could not be read. Nothing was written.
type FetchFailedError struct {
	Repository release.Repository
	Err        error
}

// Error implements the error interface.
func (e *FetchFailedError) Error() string {
	return "evaluation aborted: " + e.Err.Error()
}

// Unwrap returns the release source error.
func (e *FetchFailedError) Unwrap() error {
	return e.Err
}

// Reason classifies the underlying fetch failure.
func (e *FetchFailedError) Reason() release.Reason {
	return release.ReasonOf(e.Err)
}

// Message returns the user facing explanation for the failure.
func (e *FetchFailedError) Message() string {
	var fErr *release.FetchError
	if errors.As(e.Err, &fErr) {
		return fErr.Message()
	}
	return "Failed to fetch releases"
}
