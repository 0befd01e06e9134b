package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is an hour and minute on a 24-hour clock.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Midnight is the fallback default notification time. It matches the
// end-of-day value the app has always used: 23:59.
var Midnight = TimeOfDay{Hour: 23, Minute: 59}

// NewTimeOfDay returns a validated TimeOfDay.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	tod := TimeOfDay{Hour: hour, Minute: minute}
	if !tod.Valid() {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return tod, nil
}

// TimeOfDayOf extracts the hour and minute of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return TimeOfDayOf(t), nil
}

// Valid reports whether the hour and minute are in range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalJSON encodes the time of day as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts "HH:MM" or a full RFC 3339 timestamp, keeping only its
// hour and minute. Older settings blobs stored the default time as a timestamp.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	if tod, err := ParseTimeOfDay(s); err == nil {
		*t = tod
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid time of day %q", s)
	}
	*t = TimeOfDayOf(ts)
	return nil
}
