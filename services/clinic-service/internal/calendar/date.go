package calendar

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// SlotLength is the fixed duration of every appointment.
const SlotLength = time.Hour

// Lunch hours never hold appointments.
var lunchHours = map[int]bool{13: true, 14: true}

func IsLunch(c Clock) bool {
	return lunchHours[c.Hour()]
}

// ParseDate parses YYYY-MM-DD into a UTC midnight value, which is also how pgx
// returns DATE columns.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (YYYY-MM-DD)", s)
	}
	return t, nil
}

// Day returns the calendar day of t as seen in t's own location, as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// At combines a calendar day and a clock into an instant in loc.
func At(day time.Time, c Clock, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, loc)
}

// Split returns the calendar day and minute-truncated clock of t in loc.
func Split(t time.Time, loc *time.Location) (time.Time, Clock) {
	local := t.In(loc)
	return Day(local), NewClock(local.Hour(), local.Minute())
}

// Weekday returns 0 for Monday through 6 for Sunday.
func Weekday(day time.Time) int {
	return (int(day.Weekday()) + 6) % 7
}

// WeekBounds returns the Monday and Sunday of the week containing day.
func WeekBounds(day time.Time) (time.Time, time.Time) {
	monday := Day(day).AddDate(0, 0, -Weekday(day))
	return monday, monday.AddDate(0, 0, 6)
}

// MonthBounds returns the first and last day of the month.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// Days lists every day in [from, to]. It is empty when to precedes from.
func Days(from, to time.Time) []time.Time {
	from, to = Day(from), Day(to)
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
