// Package schedule holds the weekly working windows of dentists and the calendar
// blocks that close days, and answers which of them apply to a given date.
package schedule

import (
	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

// ValidateWindow checks a single window in isolation.
func ValidateWindow(w model.Window) error {
	if w.Weekday < 0 || w.Weekday > 6 {
		return apperr.Validation("dia_semana", "Valor inválido. Usa Lunes=0..Domingo=6.")
	}
	if !w.Start.Before(w.End) {
		return apperr.Validation("hora_fin", "Debe ser mayor que hora_inicio.")
	}
	return nil
}

// Overlaps reports whether two windows of the same dentist share any minute on the
// same weekday. Inactive windows never overlap.
func Overlaps(a, b model.Window) bool {
	if !a.Active || !b.Active {
		return false
	}
	if a.DentistID != b.DentistID || a.Weekday != b.Weekday {
		return false
	}
	return a.Start < b.End && b.Start < a.End
}

// FindOverlap returns the first existing window that overlaps candidate. A window
// never overlaps itself, so updates pass the stored row with the same ID.
func FindOverlap(candidate model.Window, existing []model.Window) (model.Window, bool) {
	for _, w := range existing {
		if candidate.ID != 0 && w.ID == candidate.ID {
			continue
		}
		if Overlaps(candidate, w) {
			return w, true
		}
	}
	return model.Window{}, false
}

// CheckWindows validates candidate and rejects it if it overlaps another active
// window of the dentist.
func CheckWindows(candidate model.Window, existing []model.Window) error {
	if err := ValidateWindow(candidate); err != nil {
		return err
	}
	if w, ok := FindOverlap(candidate, existing); ok {
		return apperr.Validation("hora_inicio", "Se solapa con el horario "+w.Start.String()+"-"+w.End.String()+".")
	}
	return nil
}

// Contains reports whether the whole slot starting at start fits inside an active
// window.
func Contains(windows []model.Window, start calendar.Clock) bool {
	end := start.Add(calendar.SlotLength)
	for _, w := range windows {
		if !w.Active {
			continue
		}
		if start >= w.Start && end <= w.End {
			return true
		}
	}
	return false
}

// ForWeekday keeps the active windows of one weekday.
func ForWeekday(windows []model.Window, weekday int) []model.Window {
	var out []model.Window
	for _, w := range windows {
		if w.Active && w.Weekday == weekday {
			out = append(out, w)
		}
	}
	return out
}
