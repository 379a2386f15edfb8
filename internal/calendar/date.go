package calendar

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a civil calendar date with no time of day and no zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes overflowing values the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return dateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func dateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return dateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool { return d == Date{} }

// utcMidnight anchors the date in UTC, which has no offset changes, so day
// arithmetic is exact.
func (d Date) utcMidnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return dateOf(d.utcMidnight().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.utcMidnight().Weekday()
}

// Sub returns d - other in whole calendar days.
func (d Date) Sub(other Date) int {
	return int(d.utcMidnight().Sub(other.utcMidnight()).Hours() / 24)
}

func (d Date) Before(other Date) bool { return d.Sub(other) < 0 }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// OperatingWeekday numbers the cycle 1 (Monday) through 5 (Friday).
// Saturday and Sunday return 0.
func OperatingWeekday(d Date) int {
	switch wd := d.Weekday(); wd {
	case time.Saturday, time.Sunday:
		return 0
	default:
		return int(wd)
	}
}
