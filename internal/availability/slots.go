package availability

import (
	"errors"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/codr1/courtside/internal/models"
)

var ErrInvalidSlotDuration = errors.New("slot duration must be a positive whole number of minutes")

// Reason explains why a slot is unavailable.
type Reason string

const (
	ReasonBooked       Reason = "booked"
	ReasonOutsideHours Reason = "outside-hours"
	ReasonInactive     Reason = "inactive-resource"
)

// Slot is a candidate interval with its availability verdict.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
	Reason    Reason    `json:"reason,omitempty"`
}

// Interval returns the slot's time range.
func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Resource is the part of a court the engine needs.
type Resource struct {
	ID     int64
	Active bool
	Hours  Hours
}

// Booked is an existing reservation placed on the timeline.
type Booked struct {
	ID       int64
	Interval Interval
	Status   string
}

// Holding returns the reservations that occupy their interval.
func Holding(booked []Booked) []Booked {
	return lo.Filter(booked, func(b Booked, _ int) bool {
		return models.HoldsSlot(b.Status)
	})
}

// Conflicts returns the holding reservations that overlap candidate.
func Conflicts(candidate Interval, booked []Booked) []Booked {
	return lo.Filter(booked, func(b Booked, _ int) bool {
		return models.HoldsSlot(b.Status) && Overlaps(candidate, b.Interval)
	})
}

// ComputeSlots enumerates the fixed-length slots for resource on date, in
// ascending start order. Slots start at each window's opening time and stop
// once the next slot would end past the window's close. Overlapping
// configured windows yield duplicate slots; they are passed through as-is.
func ComputeSlots(resource Resource, date time.Time, booked []Booked, slotDuration time.Duration) ([]Slot, []Diagnostic, error) {
	if slotDuration <= 0 || slotDuration%time.Minute != 0 {
		return nil, nil, ErrInvalidSlotDuration
	}
	step := int(slotDuration / time.Minute)
	day := Midnight(date)
	windows, diagnostics := resource.Hours.WindowsFor(day.Weekday())
	holding := Holding(booked)

	var slots []Slot
	for _, window := range windows {
		for start := window.Open; start+step <= window.Close; start += step {
			candidate := IntervalOn(day, start, start+step)
			slots = append(slots, verdict(resource, candidate, holding))
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots, diagnostics, nil
}

// Evaluate judges an arbitrary requested interval on date. The interval must
// fit inside one operating window of that day, or of the previous day when
// that window runs past midnight.
func Evaluate(resource Resource, date time.Time, booked []Booked, candidate Interval) Slot {
	day := Midnight(date)
	slot := Slot{Start: candidate.Start, End: candidate.End, Available: true}

	if !resource.Active {
		slot.Available = false
		slot.Reason = ReasonInactive
		return slot
	}

	if !withinHours(resource.Hours, day, candidate) {
		slot.Available = false
		slot.Reason = ReasonOutsideHours
		return slot
	}

	return verdict(resource, candidate, Holding(booked))
}

func withinHours(hours Hours, day time.Time, candidate Interval) bool {
	today, _ := hours.WindowsFor(day.Weekday())
	if lo.SomeBy(today, func(w Window) bool { return w.On(day).Contains(candidate) }) {
		return true
	}

	previous := day.AddDate(0, 0, -1)
	yesterday, _ := hours.WindowsFor(previous.Weekday())
	return lo.SomeBy(yesterday, func(w Window) bool {
		return w.Close > minutesPerDay && w.On(previous).Contains(candidate)
	})
}

func verdict(resource Resource, candidate Interval, holding []Booked) Slot {
	slot := Slot{Start: candidate.Start, End: candidate.End, Available: true}
	switch {
	case !resource.Active:
		slot.Available = false
		slot.Reason = ReasonInactive
	case len(Conflicts(candidate, holding)) > 0:
		slot.Available = false
		slot.Reason = ReasonBooked
	}
	return slot
}
