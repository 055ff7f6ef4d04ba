package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limaClock(t *testing.T, instant time.Time) *FixedClock {
	t.Helper()
	loc, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)
	return &FixedClock{Instant: instant, Loc: loc}
}

func TestDayBounds_BusinessTimezone(t *testing.T) {
	// 2025-03-10 03:30 UTC is still 2025-03-09 22:30 in Lima (UTC-5),
	// so the bounds must be for March 9, not March 10.
	instant := time.Date(2025, 3, 10, 3, 30, 0, 0, time.UTC)
	c := limaClock(t, instant)

	start, end := DayBounds(c, instant)

	assert.Equal(t, 2025, start.Year())
	assert.Equal(t, time.March, start.Month())
	assert.Equal(t, 9, start.Day())
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestMinutesBetween(t *testing.T) {
	from := time.Date(2025, 3, 10, 8, 5, 0, 0, time.UTC)
	to := time.Date(2025, 3, 10, 8, 20, 30, 0, time.UTC)

	assert.Equal(t, 15, MinutesBetween(from, to))
	assert.Equal(t, 0, MinutesBetween(to, from))
}
