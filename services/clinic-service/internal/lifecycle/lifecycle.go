// Package lifecycle decides which appointment state changes an actor may perform and
// applies them to the in-memory record. It never touches storage.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
)

// transitions lists the target states reachable from each state. Maintenance is only
// entered and left through bulk operations.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:     {model.StatusConfirmed, model.StatusCancelled, model.StatusDone, model.StatusMaintenance},
	model.StatusConfirmed:   {model.StatusConfirmed, model.StatusCancelled, model.StatusDone, model.StatusMaintenance},
	model.StatusMaintenance: {model.StatusPending},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// HoursUntil is the fractional number of hours from now until start.
func HoursUntil(start, now time.Time) float64 {
	return start.Sub(now).Hours()
}

// InitialStatus confirms appointments that start sooner than the auto confirm window.
func InitialStatus(p policy.Policy, start, now time.Time) model.Status {
	if HoursUntil(start, now) < float64(p.AutoConfirmHours) {
		return model.StatusConfirmed
	}
	return model.StatusPending
}

// PatientLoad is what the store counts for a patient booking on a date. Day and week
// counts exclude cancelled and maintenance appointments and the appointment being
// moved.
type PatientLoad struct {
	SameDay           int
	SameWeek          int
	Active            int
	ActiveWithDentist int
	RecentCancel      bool
}

// CheckPatientCreate applies the self-service booking limits in order.
func CheckPatientCreate(p policy.Policy, start, now time.Time, load PatientLoad) error {
	if err := checkLead(p, start, now); err != nil {
		return err
	}
	if err := checkCaps(p, load); err != nil {
		return err
	}
	if load.Active >= p.MaxActive {
		return apperr.Validation("id_paciente", fmt.Sprintf("Solo puedes tener %d cita(s) activa(s) a la vez.", p.MaxActive))
	}
	if load.ActiveWithDentist > 0 {
		return apperr.Validation("id_odontologo", "Ya tienes una cita activa con este odontólogo.")
	}
	if load.RecentCancel {
		return apperr.Validation("id_odontologo", fmt.Sprintf(
			"No puedes autoagendar con este odontólogo durante %d días después de cancelar. Comunícate con el consultorio.",
			p.CooldownDays))
	}
	return nil
}

func checkLead(p policy.Policy, start, now time.Time) error {
	if HoursUntil(start, now) < float64(p.MinLeadHours) {
		return apperr.Validation("fecha", fmt.Sprintf("Debes agendar con al menos %dh de anticipación.", p.MinLeadHours))
	}
	return nil
}

func checkCaps(p policy.Policy, load PatientLoad) error {
	if load.SameDay >= p.MaxPerDay {
		return apperr.Validation("fecha", fmt.Sprintf("Solo puedes agendar %d cita(s) por día.", p.MaxPerDay))
	}
	if load.SameWeek >= p.MaxPerWeek {
		return apperr.Validation("fecha", fmt.Sprintf("Solo puedes agendar %d citas por semana.", p.MaxPerWeek))
	}
	return nil
}

// CooldownSince is the earliest cancellation instant that still blocks rebooking.
func CooldownSince(p policy.Policy, now time.Time) time.Time {
	return now.AddDate(0, 0, -p.CooldownDays)
}

func checkOwner(a model.Appointment, actor model.Actor, verb string) error {
	if actor.Role.IsPatient() && (actor.PatientID == 0 || actor.PatientID != a.PatientID) {
		return apperr.Forbidden(fmt.Sprintf("No puedes %s citas de otro paciente.", verb))
	}
	return nil
}

// Confirm validates and applies a confirmation. source may be empty, in which case the
// channel is inferred from the actor.
func Confirm(p policy.Policy, a *model.Appointment, actor model.Actor, source model.ConfirmationSource, loc *time.Location, now time.Time) error {
	if !CanTransition(a.Status, model.StatusConfirmed) {
		return apperr.Transition(string(a.Status), "La cita no se puede confirmar en su estado actual.")
	}
	if err := checkOwner(*a, actor, "confirmar"); err != nil {
		return err
	}
	if source == "" {
		source = model.SourceReception
		if actor.Role.IsPatient() {
			source = model.SourceWeb
		}
	}
	if !source.Valid() {
		return apperr.Validation("fuente", "Valor inválido. Usa whatsapp, web o recepcion.")
	}
	if actor.Role.IsPatient() {
		hrs := HoursUntil(a.Start(loc), now)
		if hrs < float64(p.ConfirmUntilHours) || hrs > float64(p.ConfirmFromHours) {
			return apperr.Invalid(fmt.Sprintf("Solo puedes confirmar entre %dh y %dh antes.", p.ConfirmFromHours, p.ConfirmUntilHours))
		}
	}
	a.Status = model.StatusConfirmed
	a.ConfirmationSource = &source
	return nil
}

// Cancel validates and applies a cancellation. It reports changed=false when the
// appointment was already cancelled. Only patient cancellations are timestamped, which
// is what starts the rebooking cooldown.
func Cancel(a *model.Appointment, actor model.Actor, noShow bool, now time.Time) (changed bool, err error) {
	if a.Status == model.StatusCancelled {
		return false, nil
	}
	if !CanTransition(a.Status, model.StatusCancelled) {
		return false, apperr.Transition(string(a.Status), "La cita no se puede cancelar en su estado actual.")
	}
	if err := checkOwner(*a, actor, "cancelar"); err != nil {
		return false, err
	}
	role := actor.Role
	if role.IsPatient() {
		if a.Status == model.StatusConfirmed {
			return false, apperr.Invalid("No puedes cancelar una cita confirmada desde la app. Llama al consultorio.")
		}
		at := now
		a.CancelledAt = &at
	} else {
		a.NoShow = noShow
	}
	a.Status = model.StatusCancelled
	a.CancelledByRole = &role
	return true, nil
}

// Target is where an appointment is being moved to. A nil RoomID keeps the room.
type Target struct {
	Date   time.Time
	Time   calendar.Clock
	RoomID *int64
}

// CheckReschedule validates the state and the patient rules of a move. The slot itself
// is validated by the guard afterwards.
func CheckReschedule(p policy.Policy, a model.Appointment, actor model.Actor, to Target, loc *time.Location, now time.Time, load PatientLoad) error {
	switch a.Status {
	case model.StatusDone, model.StatusCancelled, model.StatusMaintenance:
		return apperr.Transition(string(a.Status), "No se puede reprogramar una cita cancelada, realizada o en mantenimiento.")
	}
	if !actor.Role.IsPatient() {
		return nil
	}
	if err := checkOwner(a, actor, "reprogramar"); err != nil {
		return err
	}
	if a.Status == model.StatusConfirmed {
		return apperr.Invalid("No puedes reprogramar una cita confirmada desde la app. Llama al consultorio.")
	}
	if a.Reschedules >= p.MaxReschedules {
		return apperr.Invalid(fmt.Sprintf("Solo puedes reprogramar %d vez/veces.", p.MaxReschedules))
	}
	if err := checkLead(p, calendar.At(to.Date, to.Time, loc), now); err != nil {
		return err
	}
	return checkCaps(p, load)
}

// Reschedule moves a to the target. Patient moves count against the reschedule limit.
func Reschedule(a *model.Appointment, actor model.Actor, to Target, now time.Time) {
	a.Date = calendar.Day(to.Date)
	a.Time = to.Time
	if to.RoomID != nil {
		a.RoomID = *to.RoomID
	}
	if actor.Role.IsPatient() {
		a.Reschedules++
	}
	role := actor.Role
	at := now
	a.RescheduledAt = &at
	a.RescheduledByRole = &role
}

// Complete marks an attended appointment as done. Only staff may do it.
func Complete(a *model.Appointment, actor model.Actor, observation *string) error {
	if !actor.Role.IsStaff() {
		return apperr.Forbidden("Solo el personal del consultorio puede marcar citas como realizadas.")
	}
	if !CanTransition(a.Status, model.StatusDone) {
		return apperr.Transition(string(a.Status), "La cita no se puede marcar como realizada en su estado actual.")
	}
	a.Status = model.StatusDone
	if observation != nil {
		a.Observation = observation
	}
	return nil
}
