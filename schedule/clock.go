package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// MinutesPerDay is the exclusive upper bound of a start clock and the
// inclusive upper bound of an end clock ("24:00").
const MinutesPerDay = 24 * 60

var (
	ErrInvalidClock  = errors.New("invalid clock time")
	ErrInvalidDate   = errors.New("invalid date")
	ErrClockOverflow = errors.New("clock time past end of day")
)

// Clock is a time of day expressed in minutes since midnight.
type Clock int

// ParseClock accepts "H:MM", "HH:MM" and "HH.MM". "24:00" is accepted as end of day.
func ParseClock(s string) (Clock, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", ":")
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[1]) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if !allDigits(parts[0]) || !allDigits(parts[1]) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if h > 23 && !(h == 24 && m == 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock(h*60 + m), nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ClockOf returns the clock reading of t in its own location, rounded up to the next minute.
func ClockOf(t time.Time) Clock {
	c := Clock(t.Hour()*60 + t.Minute())
	if t.Second() > 0 || t.Nanosecond() > 0 {
		c++
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns c shifted by minutes, failing when the result leaves [00:00, 24:00].
func (c Clock) Add(minutes int) (Clock, error) {
	next := int(c) + minutes
	if next < 0 || next > MinutesPerDay {
		return 0, fmt.Errorf("%w: %s%+d", ErrClockOverflow, c, minutes)
	}
	return Clock(next), nil
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseDate parses a YYYY-MM-DD date as midnight in loc. A nil loc means UTC.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// civil drops the time and location of t, keeping its calendar date.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
