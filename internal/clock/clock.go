package clock

import "time"

// Clock supplies the current instant and the current calendar date in the
// competition timezone. Windowing uses instants; streaks use calendar dates.
type Clock interface {
	Now() time.Time
	Today() string
}

// DateLayout is the calendar-date form used for streak day boundaries.
const DateLayout = "2006-01-02"

type zoneClock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Clock pinned to loc.
func New(loc *time.Location) Clock {
	return &zoneClock{loc: loc, now: time.Now}
}

// NewWithNow is test-only for deterministic time.
func NewWithNow(loc *time.Location, now func() time.Time) Clock {
	return &zoneClock{loc: loc, now: now}
}

func (c *zoneClock) Now() time.Time {
	return c.now()
}

func (c *zoneClock) Today() string {
	return c.now().In(c.loc).Format(DateLayout)
}

// DateOf renders t as a calendar date in loc.
func DateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}
