package verdict

import (
	"regexp"
	"strings"
)

// TagFilter restricts which release tags count toward a window.
//
// The zero value matches every tag.
type TagFilter struct {
	pattern string
	re      *regexp.Regexp
	invalid bool
	err     error
}

// CompileTagFilter compiles pattern. It never fails: a blank pattern yields a
// filter that matches everything, and an invalid pattern does the same while
// reporting Invalid so callers can log it.
func CompileTagFilter(pattern string) TagFilter {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return TagFilter{}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return TagFilter{pattern: pattern, invalid: true, err: err}
	}
	return TagFilter{pattern: pattern, re: re}
}

// Match reports whether tag passes the filter.
func (f TagFilter) Match(tag string) bool {
	if f.re == nil {
		return true
	}
	return f.re.MatchString(tag)
}

// Active reports whether the filter restricts anything.
func (f TagFilter) Active() bool {
	return f.re != nil
}

// Invalid reports whether the pattern failed to compile.
func (f TagFilter) Invalid() bool {
	return f.invalid
}

// Err returns the compile error for an invalid pattern.
func (f TagFilter) Err() error {
	return f.err
}

// Pattern returns the trimmed source pattern.
func (f TagFilter) Pattern() string {
	return f.pattern
}
