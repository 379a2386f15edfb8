// Package calendar converts instants to civil dates in the operating timezone
// and decides which days are open for booking.
package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

const DefaultTimezone = "Asia/Jakarta"

type Calendar struct {
	loc   *time.Location
	clock Clock
}

func New(loc *time.Location, clock Clock) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Calendar{loc: loc, clock: clock}
}

// Load builds a Calendar for an IANA zone name such as "Asia/Jakarta".
func Load(zone string, clock Clock) (*Calendar, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", zone, err)
	}
	return New(loc, clock), nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

// Now is the clock's instant expressed in the operating timezone.
func (c *Calendar) Now() time.Time { return c.clock.Now().In(c.loc) }

// DateOf returns the civil date of t in the operating timezone.
func (c *Calendar) DateOf(t time.Time) Date { return dateOf(t.In(c.loc)) }

func (c *Calendar) Today() Date { return c.DateOf(c.clock.Now()) }

// DaysUntil is target minus the civil date of now, in whole days.
func (c *Calendar) DaysUntil(now time.Time, target Date) int {
	return target.Sub(c.DateOf(now))
}
