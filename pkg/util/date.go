package util

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the calendar date format used in config and on the wire.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// TruncateDay drops the clock part, keeping the calendar date in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DaysBetween lists every calendar day d with from <= d < to.
func DaysBetween(from, to time.Time) []time.Time {
	from, to = TruncateDay(from), TruncateDay(to)
	if !from.Before(to) {
		return nil
	}
	days := make([]time.Time, 0, int(to.Sub(from).Hours()/24))
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// FileStamp formats t as dd_mm_yyyy for file names.
func FileStamp(t time.Time) string {
	return t.Format("02_01_2006")
}

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
