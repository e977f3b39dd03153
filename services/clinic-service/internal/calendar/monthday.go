package calendar

import (
	"fmt"
	"time"
)

// Annually recurring blocks are matched by month and day only. The expansion walks a
// leap year so 02-29 can be represented.
const monthDayBaseYear = 2000

// MonthDay formats the MM-DD key of a date.
func MonthDay(t time.Time) string {
	return fmt.Sprintf("%02d-%02d", int(t.Month()), t.Day())
}

// MonthDays expands start..end into the MM-DD keys it covers, ignoring years.
// When start falls after end within the year the range wraps: start..12-31 then
// 01-01..end.
func MonthDays(start, end time.Time) []string {
	s := time.Date(monthDayBaseYear, start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(monthDayBaseYear, end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if s.After(e) {
		dec31 := time.Date(monthDayBaseYear, 12, 31, 0, 0, 0, 0, time.UTC)
		jan1 := time.Date(monthDayBaseYear, 1, 1, 0, 0, 0, 0, time.UTC)
		return append(keys(s, dec31), keys(jan1, e)...)
	}
	return keys(s, e)
}

func keys(from, to time.Time) []string {
	var out []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, MonthDay(d))
	}
	return out
}

// MonthDaySet is MonthDays as a lookup set.
func MonthDaySet(start, end time.Time) map[string]bool {
	set := map[string]bool{}
	for _, k := range MonthDays(start, end) {
		set[k] = true
	}
	return set
}
