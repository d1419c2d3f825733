package release

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidRepository indicates the input does not identify a GitHub repository.
var ErrInvalidRepository = errors.New("release: invalid repository reference")

var (
	repoURLPattern    = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?github\.com/([^/]+)/([^/]+)`)
	repoSimplePattern = regexp.MustCompile(`^([^/]+)/([^/]+)$`)
)

// Repository identifies a public GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

// String renders the repository as "owner/name".
func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// URL returns the repository's web address.
func (r Repository) URL() string {
	return "https://github.com/" + r.String()
}

// ParseRepository accepts "https://github.com/owner/repo", "github.com/owner/repo"
// or "owner/repo", with an optional trailing slash or ".git" suffix.
func ParseRepository(input string) (Repository, error) {
	cleaned := strings.TrimSuffix(strings.TrimSpace(input), "/")
	if cleaned == "" {
		return Repository{}, ErrInvalidRepository
	}

	var owner, name string
	if match := repoURLPattern.FindStringSubmatch(cleaned); match != nil {
		owner, name = match[1], match[2]
	} else if match := repoSimplePattern.FindStringSubmatch(cleaned); match != nil {
		owner, name = match[1], match[2]
	} else {
		return Repository{}, ErrInvalidRepository
	}

	name = strings.TrimSuffix(name, ".git")
	if strings.ContainsAny(owner, " \t?#") || strings.ContainsAny(name, " \t?#") || name == "" {
		return Repository{}, ErrInvalidRepository
	}
	return Repository{Owner: owner, Name: name}, nil
}
