package week

import (
	"fmt"
	"time"
)

// Length is the absolute span of every window.
const Length = 7 * 24 * time.Hour

// DefaultHistory is the number of completed windows shown next to the current one.
const DefaultHistory = 4

// Window is a half-open interval [Start, End) evaluated as one week.
type Window struct {
	// Index is 0 for the in-progress window and -n for n weeks before it.
	Index     int
	Start     time.Time
	End       time.Time
	IsCurrent bool
	Label     string
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// NextCutoff returns the first cutoff of rule that is strictly after now.
//
// The cutoff is built from the wall clock of rule.Location: the zoned date of
// now is moved to rule.Day within the same Sunday-started week and the time
// of day is set to the rule's clock. When that instant has already passed the
// following week's cutoff is used.
func NextCutoff(rule Rule, now time.Time) time.Time {
	loc := rule.location()
	zoned := now.In(loc)
	y, m, d := zoned.Date()
	shift := int(rule.Day) - int(zoned.Weekday())

	cutoff := time.Date(y, m, d+shift, rule.Hour, rule.Minute, 0, 0, loc)
	if !cutoff.After(now) {
		cutoff = time.Date(y, m, d+shift+7, rule.Hour, rule.Minute, 0, 0, loc)
	}
	return cutoff.UTC()
}

// Compute returns the in-progress window followed by count completed windows,
// newest first.
//
// Only the anchor cutoff is derived from the zoned wall clock. Every other
// bound is obtained by subtracting Length in absolute time, so consecutive
// windows are contiguous and exactly seven days long.
func Compute(rule Rule, now time.Time, count int) []Window {
	if count < 0 {
		count = 0
	}

	end := NextCutoff(rule, now)
	windows := make([]Window, 0, count+1)
	for i := 0; i <= count; i++ {
		windows = append(windows, Window{
			Index:     -i,
			Start:     end.Add(-Length),
			End:       end,
			IsCurrent: i == 0,
			Label:     label(i),
		})
		end = end.Add(-Length)
	}
	return windows
}

// Current returns only the in-progress window.
func Current(rule Rule, now time.Time) Window {
	return Compute(rule, now, 0)[0]
}

// Find returns the window in windows that starts at start.
func Find(windows []Window, start time.Time) (Window, bool) {
	for _, w := range windows {
		if w.Start.Equal(start) {
			return w, true
		}
	}
	return Window{}, false
}

func label(weeksAgo int) string {
	switch weeksAgo {
	case 0:
		return "This Week"
	case 1:
		return "Last Week"
	default:
		return fmt.Sprintf("%d Weeks Ago", weeksAgo)
	}
}
