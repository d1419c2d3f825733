package week

import (
	"errors"
	"testing"
	"time"
)

func TestNewRule(t *testing.T) {
	t.Parallel()

	t.Run("accepts valid settings", func(t *testing.T) {
		t.Parallel()

		pattern := "  ^v\\d+ "
		rule, err := NewRule(5, "07:05", "Europe/Berlin", &pattern)
		if err != nil {
			t.Fatalf("NewRule returned error: %v", err)
		}
		if rule.Day != time.Friday || rule.Hour != 7 || rule.Minute != 5 {
			t.Fatalf("unexpected rule: %#v", rule)
		}
		if rule.Location == nil || rule.Location.String() != "Europe/Berlin" {
			t.Fatalf("expected Europe/Berlin location, got %v", rule.Location)
		}
		if rule.TagPattern != `^v\d+` || !rule.HasTagPattern() {
			t.Fatalf("expected trimmed tag pattern, got %q", rule.TagPattern)
		}
		if rule.Clock() != "07:05" {
			t.Fatalf("unexpected clock: %q", rule.Clock())
		}
		if rule.Describe() != "Friday at 07:05 (Europe/Berlin)" {
			t.Fatalf("unexpected description: %q", rule.Describe())
		}
	})

	t.Run("accepts midnight", func(t *testing.T) {
		t.Parallel()

		rule, err := NewRule(0, "00:00", "UTC", nil)
		if err != nil {
			t.Fatalf("NewRule returned error: %v", err)
		}
		if rule.Hour != 0 || rule.Minute != 0 {
			t.Fatalf("expected midnight, got %02d:%02d", rule.Hour, rule.Minute)
		}
	})

	t.Run("treats a blank pattern as no filter", func(t *testing.T) {
		t.Parallel()

		blank := "   "
		rule, err := NewRule(0, "23:59", "UTC", &blank)
		if err != nil {
			t.Fatalf("NewRule returned error: %v", err)
		}
		if rule.HasTagPattern() {
			t.Fatalf("expected no tag pattern, got %q", rule.TagPattern)
		}
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		t.Parallel()

		_, err := NewRule(7, "24:00", "Mars/Olympus_Mons", nil)
		var rErr *RuleError
		if !errors.As(err, &rErr) {
			t.Fatalf("expected RuleError, got %v", err)
		}
		for _, field := range []string{"day_of_week", "cutoff_time", "timezone"} {
			if _, ok := rErr.FieldErrors[field]; !ok {
				t.Fatalf("expected error for %s, got %#v", field, rErr.FieldErrors)
			}
		}
	})

	t.Run("requires a timezone", func(t *testing.T) {
		t.Parallel()

		_, err := NewRule(1, "12:00", "", nil)
		var rErr *RuleError
		if !errors.As(err, &rErr) || rErr.FieldErrors["timezone"] != "is required" {
			t.Fatalf("expected missing timezone error, got %v", err)
		}
	})
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{in: "23:59", hour: 23, minute: 59},
		{in: "9:30", hour: 9, minute: 30},
		{in: " 06:00 ", hour: 6, minute: 0},
		{in: "12", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "-1:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		hour, minute, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q) returned error: %v", tc.in, err)
		}
		if hour != tc.hour || minute != tc.minute {
			t.Fatalf("ParseClock(%q) = %d:%d, want %d:%d", tc.in, hour, minute, tc.hour, tc.minute)
		}
	}
}
