package borrow

import (
	"math"
	"time"
)

// Clock supplies the current instant. "Today" is derived from it once per operation.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall time in Location, or UTC when Location is nil.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// DateOf returns the calendar date of t, read in t's own location,
// as midnight UTC. Persisted dates always use this form.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b; negative when b is earlier.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(DateOf(b).Sub(DateOf(a)).Hours() / 24))
}

// storedDate normalizes a persisted date that a driver may hand back in local time.
func storedDate(t time.Time) time.Time { return DateOf(t.UTC()) }

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := DateOf(*t)
	return &d
}
