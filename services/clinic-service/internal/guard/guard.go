// Package guard validates a candidate appointment slot before it is written.
package guard

import (
	"time"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/schedule"
)

const (
	ConstraintDentistSlot = "uq_cita_odo_fecha_hora_activa"
	ConstraintRoomSlot    = "uq_cita_consul_fecha_hora_activa"
	ConstraintPatientSlot = "uq_cita_paciente_fecha_hora_activa"
)

const (
	msgMinute      = "Las citas duran 1h y deben iniciar en la hora exacta (minuto 0)."
	msgSelf        = "No puedes agendar una cita contigo mismo."
	msgRoom        = "El consultorio está inactivo."
	msgWindow      = "La hora no está dentro del horario vigente del odontólogo para ese día."
	msgBlocked     = "El día está bloqueado."
	msgDentistBusy = "Ese horario ya está tomado para el odontólogo."
	msgRoomBusy    = "El consultorio ya está ocupado en ese horario."
	msgPatient     = "El paciente ya tiene una cita en ese horario."
	msgLunch       = "No se atiende en horario de almuerzo."
)

// Candidate is the slot an appointment wants to hold. ID is zero for new
// appointments.
type Candidate struct {
	ID        int64
	PatientID int64
	DentistID int64
	RoomID    int64
	Date      time.Time
	Time      calendar.Clock
}

// Facts is what the store knows about the candidate's surroundings. Occupied holds
// the appointments at the same date and time sharing the dentist, room or patient.
type Facts struct {
	RoomActive    bool
	Windows       []model.Window
	Blocks        []model.Block
	Occupied      []model.Appointment
	PatientUserID string
	DentistUserID string
}

// Check returns the first rule c breaks, or nil. Conflicts with other appointments
// are KindConflict, everything else KindValidation.
func Check(c Candidate, f Facts) error {
	if c.Time.Minute() != 0 {
		return apperr.Validation("hora", msgMinute)
	}
	if f.PatientUserID != "" && f.PatientUserID == f.DentistUserID {
		return apperr.Validation("id_odontologo", msgSelf)
	}
	if !f.RoomActive {
		return apperr.Validation("id_consultorio", msgRoom)
	}
	windows := schedule.ForWeekday(windowsOf(f.Windows, c.DentistID), calendar.Weekday(c.Date))
	if !schedule.Contains(windows, c.Time) {
		return apperr.Validation("hora", msgWindow)
	}
	dentist := c.DentistID
	if schedule.IsBlocked(f.Blocks, &dentist, c.Date) {
		return apperr.Validation("fecha", msgBlocked)
	}
	if err := conflicts(c, f.Occupied); err != nil {
		return err
	}
	if calendar.IsLunch(c.Time) {
		return apperr.Validation("hora", msgLunch)
	}
	return nil
}

func windowsOf(all []model.Window, dentist int64) []model.Window {
	var out []model.Window
	for _, w := range all {
		if w.DentistID == 0 || w.DentistID == dentist {
			out = append(out, w)
		}
	}
	return out
}

func conflicts(c Candidate, occupied []model.Appointment) error {
	var dentist, room, patient bool
	day := calendar.Day(c.Date)
	for _, a := range occupied {
		if a.ID == c.ID && c.ID != 0 {
			continue
		}
		if !a.Status.Occupies() || a.Time != c.Time || !calendar.Day(a.Date).Equal(day) {
			continue
		}
		dentist = dentist || a.DentistID == c.DentistID
		room = room || a.RoomID == c.RoomID
		patient = patient || a.PatientID == c.PatientID
	}
	switch {
	case dentist:
		return apperr.Conflict("hora", msgDentistBusy)
	case room:
		return apperr.Conflict("id_consultorio", msgRoomBusy)
	case patient:
		return apperr.Conflict("id_paciente", msgPatient)
	}
	return nil
}

// FromConstraint translates a unique index violation into the error the pre-check
// would have produced. ok is false for constraints this package does not own.
func FromConstraint(name string) (err *apperr.Error, ok bool) {
	switch name {
	case ConstraintDentistSlot:
		return apperr.Conflict("hora", msgDentistBusy), true
	case ConstraintRoomSlot:
		return apperr.Conflict("id_consultorio", msgRoomBusy), true
	case ConstraintPatientSlot:
		return apperr.Conflict("id_paciente", msgPatient), true
	}
	return nil, false
}
