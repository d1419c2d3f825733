package week

import "time"

// CommonTimezones lists the zones offered by default when configuring a cutoff.
var CommonTimezones = []string{
	"America/New_York",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
	"America/Toronto",
	"Europe/London",
	"Europe/Paris",
	"Europe/Berlin",
	"Asia/Tokyo",
	"Asia/Singapore",
	"Asia/Dubai",
	"Australia/Sydney",
	"Pacific/Auckland",
	"UTC",
}

// DayName returns the English name of a weekday.
func DayName(day time.Weekday) string {
	if day < time.Sunday || day > time.Saturday {
		return "Unknown"
	}
	return day.String()
}

// FormatRange renders a window for display in loc, e.g. "Mar 10 - Mar 17, 2024".
func FormatRange(start, end time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return start.In(loc).Format("Jan 2") + " - " + end.In(loc).Format("Jan 2, 2006")
}

// FormatDate renders an instant as a calendar date in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Jan 2, 2006")
}

// FormatTime renders an instant as a 12 hour wall-clock time in loc.
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("3:04 PM")
}
