package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the data service and exports.
const DateLayout = "2006-01-02"

// ParseDate reads the calendar date at the start of s. Trailing time
// components ("2024-01-25 17:00:00", "2024-01-25T17:00:00Z") are ignored.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return time.Time{}, fmt.Errorf("parse date %q: too short", s)
	}
	t, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// Day truncates t to UTC midnight of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of whole days between a and b.
func DaysBetween(a, b time.Time) int {
	d := Day(a).Sub(Day(b)).Hours() / 24
	if d < 0 {
		d = -d
	}
	return int(d + 0.5)
}

// Within reports whether t lies in [start, end], comparing calendar days.
func Within(t, start, end time.Time) bool {
	t = Day(t)
	return !t.Before(Day(start)) && !t.After(Day(end))
}
