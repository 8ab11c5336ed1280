package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/codr1/courtside/internal/availability"
	"github.com/codr1/courtside/internal/db/queries"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Defaults fills in a court's operating hours when it defines none.
type Defaults struct {
	Open  string
	Close string
}

// Timeline loads courts and reservations into the shapes the availability
// engine works with. Dates and clock times are read in Location.
type Timeline struct {
	Location *time.Location
	Defaults Defaults
}

// Resource builds the availability view of a court: its weekday windows when
// it has any, otherwise its fixed pair, each end falling back to the default.
func (tl Timeline) Resource(ctx context.Context, q *queries.Queries, court queries.Court) (availability.Resource, error) {
	rows, err := q.ListCourtHours(ctx, court.ID)
	if err != nil {
		return availability.Resource{}, fmt.Errorf("list court hours: %w", err)
	}

	hours := availability.Hours{
		Open:  lo.Ternary(court.OpeningTime.Valid && strings.TrimSpace(court.OpeningTime.String) != "", court.OpeningTime.String, tl.Defaults.Open),
		Close: lo.Ternary(court.ClosingTime.Valid && strings.TrimSpace(court.ClosingTime.String) != "", court.ClosingTime.String, tl.Defaults.Close),
	}
	if len(rows) > 0 {
		hours.Daily = make(map[time.Weekday][]string)
		for _, row := range rows {
			day := time.Weekday(row.DayOfWeek)
			hours.Daily[day] = append(hours.Daily[day], row.Hours)
		}
	}

	return availability.Resource{
		ID:     court.ID,
		Active: court.IsActive,
		Hours:  hours,
	}, nil
}

// Booked loads every reservation on the court dated between from and to
// inclusive. Status filtering is left to the engine.
func (tl Timeline) Booked(ctx context.Context, q *queries.Queries, courtID int64, from, to time.Time) ([]availability.Booked, error) {
	rows, err := q.ListReservationsForCourtDates(ctx, queries.ListReservationsForCourtDatesParams{
		CourtID:  courtID,
		FromDate: from.Format(dateLayout),
		ToDate:   to.Format(dateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	booked := make([]availability.Booked, 0, len(rows))
	for _, row := range rows {
		interval, err := tl.Interval(row.BookingDate, row.StartTime, row.EndTime)
		if err != nil {
			return nil, fmt.Errorf("reservation %d: %w", row.ID, err)
		}
		booked = append(booked, availability.Booked{
			ID:       row.ID,
			Interval: interval,
			Status:   row.Status,
		})
	}
	return booked, nil
}

// Date parses a YYYY-MM-DD date at local midnight.
func (tl Timeline) Date(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(raw), tl.location())
}

// Interval places HH:MM start and end times on a date.
func (tl Timeline) Interval(date, start, end string) (availability.Interval, error) {
	day, err := tl.Date(date)
	if err != nil {
		return availability.Interval{}, fmt.Errorf("invalid date %q", date)
	}
	startMin, err := clockMinutes(start)
	if err != nil {
		return availability.Interval{}, err
	}
	endMin, err := clockMinutes(end)
	if err != nil {
		return availability.Interval{}, err
	}
	return availability.IntervalOn(day, startMin, endMin), nil
}

func (tl Timeline) location() *time.Location {
	if tl.Location == nil {
		return time.UTC
	}
	return tl.Location
}

func clockMinutes(raw string) (int, error) {
	parsed, err := time.Parse(clockLayout, strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
