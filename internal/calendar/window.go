package calendar

import "time"

// MondayLookahead is how many days ahead Monday opens: Friday, Saturday and
// Sunday all count as H-1 for Monday.
const MondayLookahead = 3

// IsBookable reports whether a meal on target (operating weekday 1..5) may be
// chosen at the instant now. Monday accepts 1..3 days ahead, Tuesday to Friday
// exactly one day ahead. Same-day and past dates are never bookable.
func (c *Calendar) IsBookable(now time.Time, weekday int, target Date) bool {
	if weekday < 1 || weekday > 5 || OperatingWeekday(target) != weekday {
		return false
	}
	days := c.DaysUntil(now, target)
	if weekday == 1 {
		return days >= 1 && days <= MondayLookahead
	}
	return days == 1
}

// Bookable is IsBookable with the weekday derived from target.
func (c *Calendar) Bookable(now time.Time, target Date) bool {
	return c.IsBookable(now, OperatingWeekday(target), target)
}

var dayLabels = [5]string{"Senin", "Selasa", "Rabu", "Kamis", "Jumat"}

// Day is one operating day of a displayed week.
type Day struct {
	Index   int    `json:"index"`   // 0..4
	Weekday int    `json:"weekday"` // 1..5
	Label   string `json:"label"`
	Date    Date   `json:"date"`
}

// TargetWeek returns Monday..Friday of the week a student should see at now.
// From Friday through Sunday that is the next week, otherwise the current one.
func (c *Calendar) TargetWeek(now time.Time) []Day {
	today := c.DateOf(now)

	var monday Date
	switch wd := today.Weekday(); wd {
	case time.Friday:
		monday = today.AddDays(3)
	case time.Saturday:
		monday = today.AddDays(2)
	case time.Sunday:
		monday = today.AddDays(1)
	default:
		monday = today.AddDays(-(int(wd) - 1))
	}

	days := make([]Day, 0, len(dayLabels))
	for i, label := range dayLabels {
		days = append(days, Day{
			Index:   i,
			Weekday: i + 1,
			Label:   label,
			Date:    monday.AddDays(i),
		})
	}
	return days
}

// DayOf locates date inside the cycle. ok is false on weekends.
func DayOf(date Date) (Day, bool) {
	wd := OperatingWeekday(date)
	if wd == 0 {
		return Day{}, false
	}
	return Day{Index: wd - 1, Weekday: wd, Label: dayLabels[wd-1], Date: date}, true
}
