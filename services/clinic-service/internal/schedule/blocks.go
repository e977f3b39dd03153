package schedule

import (
	"sort"
	"time"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

// Matches reports whether b closes day, ignoring scope.
func Matches(b model.Block, day time.Time) bool {
	if b.Recurring {
		return calendar.MonthDay(b.Date) == calendar.MonthDay(day)
	}
	return calendar.Day(b.Date).Equal(calendar.Day(day))
}

// Applies reports whether b closes day for dentist. A nil dentist only sees global
// blocks.
func Applies(b model.Block, dentist *int64, day time.Time) bool {
	if !b.Global() && (dentist == nil || *b.DentistID != *dentist) {
		return false
	}
	return Matches(b, day)
}

// BlockedReason returns whether day is blocked for dentist and the reason to show.
// A block of the dentist wins over a global one.
func BlockedReason(blocks []model.Block, dentist *int64, day time.Time) (string, bool) {
	reason, blocked := "", false
	for _, b := range blocks {
		if !Applies(b, dentist, day) {
			continue
		}
		if !b.Global() {
			return b.Reason, true
		}
		if !blocked {
			reason, blocked = b.Reason, true
		}
	}
	return reason, blocked
}

func IsBlocked(blocks []model.Block, dentist *int64, day time.Time) bool {
	_, blocked := BlockedReason(blocks, dentist, day)
	return blocked
}

type BlockedDay struct {
	Date   time.Time
	Reason string
}

// BlockedDays lists the blocked days in [from, to], one entry per date.
func BlockedDays(blocks []model.Block, dentist *int64, from, to time.Time) []BlockedDay {
	var out []BlockedDay
	for _, day := range calendar.Days(from, to) {
		if reason, ok := BlockedReason(blocks, dentist, day); ok {
			out = append(out, BlockedDay{Date: day, Reason: reason})
		}
	}
	return out
}

// ExpandGroup returns one block row per calendar day of g.
func ExpandGroup(g model.BlockGroup) []model.Block {
	days := calendar.Days(g.Start, g.End)
	out := make([]model.Block, 0, len(days))
	for _, d := range days {
		out = append(out, model.Block{
			Group:     g.ID,
			DentistID: g.DentistID,
			Date:      d,
			Recurring: g.Recurring,
			Reason:    g.Reason,
		})
	}
	return out
}

// ValidateGroup checks the range of a block group.
func ValidateGroup(g model.BlockGroup) error {
	if g.Start.IsZero() {
		return apperr.Validation("fecha_inicio", "Este campo es requerido.")
	}
	if g.End.IsZero() {
		return apperr.Validation("fecha_fin", "Este campo es requerido.")
	}
	if g.End.Before(g.Start) {
		return apperr.Validation("fecha_fin", "Debe ser ≥ fecha_inicio.")
	}
	return nil
}

// GroupIntersects reports whether an existing block of the same scope collides with
// the range of g. Non recurring rows collide by date, recurring rows by month-day.
// Rows of g itself are ignored.
func GroupIntersects(g model.BlockGroup, existing []model.Block) bool {
	set := calendar.MonthDaySet(g.Start, g.End)
	from, to := calendar.Day(g.Start), calendar.Day(g.End)
	for _, b := range existing {
		if b.Group == g.ID || !sameScope(b.DentistID, g.DentistID) {
			continue
		}
		if b.Recurring {
			if set[calendar.MonthDay(b.Date)] {
				return true
			}
			continue
		}
		d := calendar.Day(b.Date)
		if !d.Before(from) && !d.After(to) {
			return true
		}
	}
	return false
}

func sameScope(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Groups folds block rows back into their groups, ordered by start date.
func Groups(blocks []model.Block) []model.BlockGroup {
	byID := map[string]*model.BlockGroup{}
	var order []string
	for _, b := range blocks {
		key := b.Group.String()
		g, ok := byID[key]
		if !ok {
			g = &model.BlockGroup{
				ID:        b.Group,
				Start:     b.Date,
				End:       b.Date,
				Reason:    b.Reason,
				Recurring: b.Recurring,
				DentistID: b.DentistID,
			}
			byID[key] = g
			order = append(order, key)
			continue
		}
		if b.Date.Before(g.Start) {
			g.Start = b.Date
		}
		if b.Date.After(g.End) {
			g.End = b.Date
		}
	}
	out := make([]model.BlockGroup, 0, len(order))
	for _, k := range order {
		out = append(out, *byID[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
