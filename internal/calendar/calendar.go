// Package calendar centralizes working-day arithmetic. Apply-time sizing,
// approval-time re-checks and balance queries must all count days the same
// way; any drift between those call sites would corrupt balance integrity.
package calendar

import (
	"errors"
	"time"
)

// ErrInvalidRange is returned when the end of a range precedes its start.
var ErrInvalidRange = errors.New("end date cannot be before start date")

// WorkingDays counts the dates in [start, end] inclusive whose weekday is
// Monday through Friday. No holiday calendar is applied.
func WorkingDays(start, end time.Time) (int, error) {
	start = Truncate(start)
	end = Truncate(end)
	if end.Before(start) {
		return 0, ErrInvalidRange
	}

	count := 0
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
		switch cur.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			count++
		}
	}
	return count, nil
}

// YearBounds returns January 1 and December 31 of the given year.
func YearBounds(year int) (time.Time, time.Time) {
	first := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return first, last
}

// ClipToYear clamps [start, end] to the given year's bounds. The result is
// only meaningful when the range intersects the year.
func ClipToYear(start, end time.Time, year int) (time.Time, time.Time) {
	yearStart, yearEnd := YearBounds(year)
	if start.Before(yearStart) {
		start = yearStart
	}
	if end.After(yearEnd) {
		end = yearEnd
	}
	return start, end
}

// Truncate normalizes a timestamp to a calendar date in UTC.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
