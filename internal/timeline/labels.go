package timeline

import (
	"fmt"
	"time"
)

// Midnight truncates t to the start of its calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayKey is the stable identity of a date marker.
func DayKey(day time.Time) string {
	return "date-" + day.Format("2006-01-02")
}

// DayLabel renders a day relative to now: "Today", "Yesterday", the weekday
// name within the current Monday-based week, otherwise M/D/YYYY.
func DayLabel(day, now time.Time) string {
	loc := now.Location()
	day = Midnight(day, loc)
	today := Midnight(now, loc)

	switch daysBetween(day, today) {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	}
	if !day.Before(StartOfWeek(today)) {
		return day.Weekday().String()
	}
	return fmt.Sprintf("%d/%d/%d", int(day.Month()), day.Day(), day.Year())
}

// StartOfWeek returns the Monday on or before day.
func StartOfWeek(day time.Time) time.Time {
	day = Midnight(day, day.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
