// Package clock provides the injected time capability used by every
// engine operation. Calendar-day comparisons ("already visited today")
// are evaluated in the business timezone, not the server's.
package clock

import "time"

// Clock supplies the current instant and the business timezone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads the wall clock in a fixed business timezone.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a system clock for the given IANA timezone.
func NewSystemClock(timezone string) (*SystemClock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &SystemClock{loc: loc}, nil
}

func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// FixedClock always returns the same instant. Test use.
type FixedClock struct {
	Instant time.Time
	Loc     *time.Location
}

func (c *FixedClock) Now() time.Time {
	return c.Instant.In(c.Loc)
}

func (c *FixedClock) Location() *time.Location {
	return c.Loc
}

// DayBounds returns the [start, end) of the calendar day containing t,
// evaluated in the clock's business timezone.
func DayBounds(c Clock, t time.Time) (time.Time, time.Time) {
	local := t.In(c.Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location())
	return start, start.AddDate(0, 0, 1)
}

// MinutesBetween returns whole minutes between two instants, never
// negative.
func MinutesBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Minutes())
}
