package availability

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

var (
	ErrEmptyClock  = errors.New("time is empty")
	ErrEmptyWindow = errors.New("operating window is empty")

	clockPattern = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?$`)
	// Hyphen, en dash, em dash or the word "to".
	windowSeparator = regexp.MustCompile(`\s*(?:-|\x{2013}|\x{2014}|\bto\b)\s*`)
	entrySeparator  = regexp.MustCompile(`[,;\n]`)
)

// Window is an operating window in minutes after midnight. Close may exceed
// 24h when the window runs past midnight.
type Window struct {
	Open  int
	Close int
}

// On places the window on a calendar day.
func (w Window) On(day time.Time) Interval {
	return IntervalOn(day, w.Open, w.Close)
}

// String renders the window as HH:MM-HH:MM.
func (w Window) String() string {
	return FormatClock(w.Open) + "-" + FormatClock(w.Close)
}

// ParseClock converts a human-entered time of day into minutes after midnight.
// It accepts 24h ("07:00", "19:30", "24:00") and 12h ("7am", "7:00 pm",
// "7.30p.m.") forms.
func ParseClock(raw string) (int, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, ErrEmptyClock
	}
	match := clockPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, fmt.Errorf("unrecognized time %q", raw)
	}

	hour, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("unrecognized hour in %q", raw)
	}
	minute := 0
	if match[2] != "" {
		minute, err = strconv.Atoi(match[2])
		if err != nil || minute > 59 {
			return 0, fmt.Errorf("minutes out of range in %q", raw)
		}
	}

	switch strings.ReplaceAll(match[3], ".", "") {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("hour out of range in %q", raw)
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("hour out of range in %q", raw)
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 24 || (hour == 24 && minute != 0) {
			return 0, fmt.Errorf("hour out of range in %q", raw)
		}
	}

	return hour*60 + minute, nil
}

// FormatClock renders minutes after midnight as HH:MM. Values past midnight
// wrap to the next day's reading.
func FormatClock(minutes int) string {
	if minutes != minutesPerDay {
		minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseWindow parses strings such as "7:00am-8:00am", "07:00 – 08:00" or
// "7am to 8am". A close time at or before the open time means the window
// crosses midnight.
func ParseWindow(raw string) (Window, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return Window{}, ErrEmptyWindow
	}
	parts := windowSeparator.Split(value, -1)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("operating window %q must have exactly one open and one close time", raw)
	}

	open, err := ParseClock(parts[0])
	if err != nil {
		return Window{}, fmt.Errorf("opening time: %w", err)
	}
	if open >= minutesPerDay {
		return Window{}, fmt.Errorf("opening time %q is not within the day", parts[0])
	}
	closeAt, err := ParseClock(parts[1])
	if err != nil {
		return Window{}, fmt.Errorf("closing time: %w", err)
	}
	return newWindow(open, closeAt), nil
}

func newWindow(open, closeAt int) Window {
	if closeAt <= open {
		closeAt += minutesPerDay
	}
	return Window{Open: open, Close: closeAt}
}

// Diagnostic describes an operating-hours entry that was skipped.
type Diagnostic struct {
	Entry string
	Err   error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%q: %v", d.Entry, d.Err)
}

// Hours is a court's operating-hours definition: either a fixed daily
// open/close pair, or free-form windows per weekday. Weekday entries take
// precedence for the days they cover.
type Hours struct {
	Open  string
	Close string
	Daily map[time.Weekday][]string
}

// WindowsFor returns the parsed windows for a weekday. Entries that cannot be
// parsed are skipped and reported as diagnostics.
func (h Hours) WindowsFor(day time.Weekday) ([]Window, []Diagnostic) {
	var (
		windows     []Window
		diagnostics []Diagnostic
	)

	if entries := h.Daily[day]; len(entries) > 0 {
		for _, entry := range entries {
			for _, part := range entrySeparator.Split(entry, -1) {
				if strings.TrimSpace(part) == "" {
					continue
				}
				window, err := ParseWindow(part)
				if err != nil {
					diagnostics = append(diagnostics, Diagnostic{Entry: strings.TrimSpace(part), Err: err})
					continue
				}
				windows = append(windows, window)
			}
		}
		return windows, diagnostics
	}

	if strings.TrimSpace(h.Open) == "" && strings.TrimSpace(h.Close) == "" {
		return nil, nil
	}
	entry := h.Open + "-" + h.Close
	open, err := ParseClock(h.Open)
	if err != nil {
		return nil, []Diagnostic{{Entry: entry, Err: fmt.Errorf("opening time: %w", err)}}
	}
	closeAt, err := ParseClock(h.Close)
	if err != nil {
		return nil, []Diagnostic{{Entry: entry, Err: fmt.Errorf("closing time: %w", err)}}
	}
	if open >= minutesPerDay {
		return nil, []Diagnostic{{Entry: entry, Err: fmt.Errorf("opening time %q is not within the day", h.Open)}}
	}
	return []Window{newWindow(open, closeAt)}, nil
}
