// Package eventtime parses the date/time a staff member types while
// creating or editing an event, and formats it back for display.
package eventtime

import (
	"fmt"
	"strings"
	"time"

	"opboard/internal/domain"
)

// Hint is shown to users after an unparsable answer.
const Hint = "Try a format like `2026-03-01 14:00`, `Sunday, March 1, 2026 14:00` or `tomorrow 20:00`."

// ParseError is returned for unparsable or past input. It unwraps to
// domain.ErrTimeParse or domain.ErrTimeInPast.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == domain.ErrTimeInPast {
		return fmt.Sprintf("the time %q is in the past, please provide a future date and time", e.Input)
	}
	if e.Input == "" {
		return "no time provided, please enter a date and time. " + Hint
	}
	return fmt.Sprintf("could not understand %q as a date/time. %s", e.Input, Hint)
}

func (e *ParseError) Unwrap() error { return e.Err }

var absoluteLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04",
	"Monday, January 2, 2006 15:04",
	"Monday January 2, 2006 15:04",
	"Monday, January 2 2006 15:04",
	"Monday, Jan 2, 2006 15:04",
	"Mon, Jan 2, 2006 15:04",
	"Mon Jan 2 2006 15:04",
	"January 2, 2006 15:04",
	"January 2 2006 15:04",
	"Jan 2, 2006 15:04",
	"Jan 2 2006 15:04",
	"2 January 2006 15:04",
	"2 Jan 2006 15:04",
}

// Layouts without a year: the next occurrence is used.
var yearlessLayouts = []string{
	"Monday, January 2 15:04",
	"Monday, January 2, 15:04",
	"January 2 15:04",
	"January 2, 15:04",
	"Jan 2 15:04",
	"Jan 2, 15:04",
	"2 January 15:04",
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// Parse interprets raw in loc, relative to now, and returns the instant in
// UTC. Past instants are rejected.
func Parse(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if cleaned == "" {
		return time.Time{}, &ParseError{Err: domain.ErrTimeParse}
	}
	if loc == nil {
		loc = time.UTC
	}
	localNow := now.In(loc)

	t, ok := parseAbsolute(cleaned, loc, localNow)
	if !ok {
		t, ok = parseRelative(strings.ToLower(cleaned), loc, localNow)
	}
	if !ok {
		return time.Time{}, &ParseError{Input: cleaned, Err: domain.ErrTimeParse}
	}
	if t.Before(now) {
		return time.Time{}, &ParseError{Input: cleaned, Err: domain.ErrTimeInPast}
	}
	return t.UTC(), nil
}

func parseAbsolute(s string, loc *time.Location, now time.Time) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range yearlessLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		t = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)
		if t.Before(now) {
			t = t.AddDate(1, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// parseRelative handles "today 20:00", "tomorrow 20:00", "sunday 19:30"
// and "next sunday 19:30". A bare weekday may be today when the time is
// still ahead; "next" always means a later day.
func parseRelative(s string, loc *time.Location, now time.Time) (time.Time, bool) {
	words := strings.Fields(s)
	if len(words) < 2 {
		return time.Time{}, false
	}
	clock, err := time.Parse("15:04", words[len(words)-1])
	if err != nil {
		return time.Time{}, false
	}
	day := strings.Join(words[:len(words)-1], " ")
	day = strings.TrimSuffix(strings.TrimPrefix(day, "on "), ",")
	day = strings.TrimSuffix(day, " at")

	at := func(offset int) time.Time {
		d := now.AddDate(0, 0, offset)
		return time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	}

	switch day {
	case "today", "tonight":
		return at(0), true
	case "tomorrow":
		return at(1), true
	}

	next := false
	if rest, ok := strings.CutPrefix(day, "next "); ok {
		next = true
		day = rest
	}
	wd, ok := weekdays[day]
	if !ok {
		return time.Time{}, false
	}
	offset := (int(wd) - int(now.Weekday()) + 7) % 7
	if next && offset == 0 {
		offset = 7
	}
	t := at(offset)
	if !next && offset == 0 && t.Before(now) {
		t = at(7)
	}
	return t, true
}

// Format renders t in loc using a Go layout.
func Format(t time.Time, loc *time.Location, layout string) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(layout)
}
