// Package availability computes which fixed-length court intervals are free
// for a day. It performs no I/O: callers supply the court definition and the
// reservations that already exist.
package availability

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Contains reports whether other lies entirely within i.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Overlaps reports whether a and b share any instant. Touching endpoints do
// not overlap: [9:00,10:00) and [10:00,11:00) are disjoint.
//
// Both slot generation and the reservation write guard go through this
// function; there is no second definition of a conflict.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// clockOn returns the instant minutes after local midnight of day. Minutes
// past 24h roll into the following day.
func clockOn(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, minutes, 0, 0, day.Location())
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	return clockOn(t, 0)
}

// IntervalOn builds the interval between two clock readings on day.
func IntervalOn(day time.Time, startMinutes, endMinutes int) Interval {
	return Interval{
		Start: clockOn(day, startMinutes),
		End:   clockOn(day, endMinutes),
	}
}
