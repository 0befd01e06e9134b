// Package calendar holds the date arithmetic used to turn an expiration date,
// a days-prior offset and a time-of-day into a reminder instant.
//
// Every function here is forgiving: malformed input falls back to "now"
// (or today's date) instead of returning an error. Callers rely on that
// policy, so the fallbacks are part of the contract and are tested.
package calendar

import (
	"time"
)

// DateLayout is the yyyy-mm-dd layout used for expiration dates everywhere.
const DateLayout = "2006-01-02"

// shortDateLayout is the MM-dd form accepted by the add-item form.
const shortDateLayout = "01-02"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock's location (time.Local if unset).
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant. Used in tests.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return c.T
}

// DeriveNotificationInstant computes when a reminder for an item should fire.
//
// The expiration date's time-of-day is replaced by tod (seconds zeroed) and
// priorDays calendar days are then subtracted, so "3 days prior at 09:00"
// always lands on 09:00 regardless of the time stored with the date.
//
// The instant is built in now's location using the calendar date the
// expiration carries, so a date decoded with a fixed UTC offset still lands
// on tod's wall clock after priorDays crosses a DST change.
//
// Fallbacks: a nil expiration date uses now's date, an invalid tod uses now's
// hour and minute, and a negative priorDays is treated as zero.
func DeriveNotificationInstant(expirationDate *time.Time, tod TimeOfDay, priorDays int, now time.Time) time.Time {
	base := now
	if expirationDate != nil && !expirationDate.IsZero() {
		base = *expirationDate
	}
	if !tod.Valid() {
		tod = TimeOfDayOf(now)
	}
	if priorDays < 0 {
		priorDays = 0
	}

	at := time.Date(base.Year(), base.Month(), base.Day(), tod.Hour, tod.Minute, 0, 0, now.Location())
	return at.AddDate(0, 0, -priorDays)
}

// DateIn returns midnight in loc of the calendar day t carries in its own
// location.
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// StartOfDay returns midnight at the start of t's calendar day, in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Today returns the start of the current day according to clock.
func Today(clock Clock) time.Time {
	return StartOfDay(clock.Now())
}

// FormatDate renders t as yyyy-mm-dd.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a yyyy-mm-dd string as a calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// ParseExpirationInput interprets the text typed into the expiration field of
// the add-item form. An empty input means today. MM-dd is taken in the current
// year and yyyy-MM-dd as given. Anything else falls back to today.
func ParseExpirationInput(input string, now time.Time) time.Time {
	today := StartOfDay(now)
	if input == "" {
		return today
	}
	if t, err := time.ParseInLocation(shortDateLayout, input, now.Location()); err == nil {
		return time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	}
	if t, err := time.ParseInLocation(DateLayout, input, now.Location()); err == nil {
		return t
	}
	return today
}

// FormatDateInput re-formats raw text from the expiration field while the user
// types: hyphens are stripped, at most eight characters are kept and hyphens
// are re-inserted after the year and the month.
func FormatDateInput(raw string) string {
	digits := make([]rune, 0, 8)
	for _, r := range raw {
		if r == '-' {
			continue
		}
		if len(digits) == 8 {
			break
		}
		digits = append(digits, r)
	}

	out := make([]rune, 0, 10)
	for i, r := range digits {
		if (i == 4 && len(digits) > 4) || (i == 6 && len(digits) > 6) {
			out = append(out, '-')
		}
		out = append(out, r)
	}
	return string(out)
}
