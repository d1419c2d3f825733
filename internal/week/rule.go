package week

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Rule describes the weekly cutoff a commitment is measured against.
//
// A Rule is only constructed through NewRule and is never mutated afterwards;
// settings updates replace the whole value.
type Rule struct {
	Day        time.Weekday
	Hour       int
	Minute     int
	Timezone   string
	Location   *time.Location
	TagPattern string
}

// RuleError reports every invalid field of a cutoff rule at once.
type RuleError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	if e == nil || len(e.FieldErrors) == 0 {
		return "week: invalid cutoff rule"
	}
	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e.FieldErrors[field])
	}
	return "week: invalid cutoff rule (" + strings.Join(parts, "; ") + ")"
}

func (e *RuleError) add(field, message string) {
	if e.FieldErrors == nil {
		e.FieldErrors = make(map[string]string)
	}
	e.FieldErrors[field] = message
}

// NewRule validates raw settings and returns an immutable Rule.
//
// day is Sunday-indexed (0-6), clock is "HH:MM" on a 24 hour clock and
// timezone is an IANA zone name. A nil or blank tagPattern means no tag filter.
func NewRule(day int, clock, timezone string, tagPattern *string) (Rule, error) {
	var rErr RuleError

	if day < 0 || day > 6 {
		rErr.add("day_of_week", "must be between 0 (Sunday) and 6 (Saturday)")
	}

	hour, minute, err := ParseClock(clock)
	if err != nil {
		rErr.add("cutoff_time", err.Error())
	}

	zone := strings.TrimSpace(timezone)
	var loc *time.Location
	if zone == "" {
		rErr.add("timezone", "is required")
	} else if loc, err = time.LoadLocation(zone); err != nil {
		rErr.add("timezone", "unknown timezone "+strconv.Quote(zone))
	}

	if len(rErr.FieldErrors) > 0 {
		return Rule{}, &rErr
	}

	rule := Rule{
		Day:      time.Weekday(day),
		Hour:     hour,
		Minute:   minute,
		Timezone: zone,
		Location: loc,
	}
	if tagPattern != nil {
		rule.TagPattern = strings.TrimSpace(*tagPattern)
	}
	return rule, nil
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(clock string) (hour, minute int, err error) {
	value := strings.TrimSpace(clock)
	h, m, ok := strings.Cut(value, ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, 0, fmt.Errorf("must be formatted as HH:MM")
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour must be between 00 and 23")
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute must be between 00 and 59")
	}
	return hour, minute, nil
}

// Clock renders the cutoff time as "HH:MM".
func (r Rule) Clock() string {
	return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}

// HasTagPattern reports whether the rule restricts qualifying tags.
func (r Rule) HasTagPattern() bool {
	return r.TagPattern != ""
}

// Describe renders the rule for display, e.g. "Sunday at 23:59 (UTC)".
func (r Rule) Describe() string {
	return fmt.Sprintf("%s at %s (%s)", DayName(r.Day), r.Clock(), r.Timezone)
}

func (r Rule) location() *time.Location {
	if r.Location != nil {
		return r.Location
	}
	return time.UTC
}
