package booking

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/guard"
	"github.com/oralflow/oralflow/services/clinic-service/internal/lifecycle"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/outbox"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
)

// CreateInput is a booking request. PatientID is ignored for patients, who always
// book for themselves.
type CreateInput struct {
	PatientID int64
	DentistID int64
	RoomID    int64
	Date      time.Time
	Time      calendar.Clock
	Reason    string
}

func (s *Service) Create(ctx context.Context, actor model.Actor, in CreateInput) (model.AppointmentDetail, error) {
	d, err := s.create(ctx, actor, in)
	s.record("create", d.Status, err)
	return d, err
}

func (s *Service) create(ctx context.Context, actor model.Actor, in CreateInput) (model.AppointmentDetail, error) {
	p, err := s.policy.Current(ctx)
	if err != nil {
		return model.AppointmentDetail{}, err
	}
	if actor.Role.IsPatient() {
		if actor.PatientID == 0 {
			return model.AppointmentDetail{}, apperr.Invalid("Usuario no asociado a un paciente válido.")
		}
		in.PatientID = actor.PatientID
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return model.AppointmentDetail{}, apperr.Validation("motivo", "El motivo no puede estar vacío.")
	}
	in.Date = calendar.Day(in.Date)

	now := s.clock()
	start := calendar.At(in.Date, in.Time, s.loc)

	var out model.AppointmentDetail
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		c := guard.Candidate{
			PatientID: in.PatientID,
			DentistID: in.DentistID,
			RoomID:    in.RoomID,
			Date:      in.Date,
			Time:      in.Time,
		}
		facts, err := s.facts(ctx, tx, c)
		if err != nil {
			return err
		}
		if actor.Role.IsPatient() {
			load, err := s.appts.PatientLoad(ctx, tx, in.PatientID, in.DentistID, in.Date, 0, lifecycle.CooldownSince(p, now))
			if err != nil {
				return err
			}
			if err := lifecycle.CheckPatientCreate(p, start, now, load); err != nil {
				return err
			}
		}
		if err := guard.Check(c, facts); err != nil {
			return err
		}

		a := model.Appointment{
			PatientID: in.PatientID,
			DentistID: in.DentistID,
			RoomID:    in.RoomID,
			Date:      in.Date,
			Time:      in.Time,
			Reason:    in.Reason,
			Status:    lifecycle.InitialStatus(p, start, now),
		}
		if err := s.appts.Insert(ctx, tx, &a); err != nil {
			return err
		}
		out, err = s.publish(ctx, tx, a.ID, outbox.TypeAppointmentCreated, "")
		return err
	})
	if err != nil {
		return model.AppointmentDetail{}, err
	}
	s.logger.Info("appointment created",
		"id_cita", out.ID,
		"estado", out.Status,
		"id_odontologo", out.DentistID,
		"role", int(actor.Role),
	)
	return out, nil
}

// facts gathers what the guard needs about c. Missing directory rows are reported
// against the field that referenced them.
func (s *Service) facts(ctx context.Context, q db.Querier, c guard.Candidate) (guard.Facts, error) {
	patient, err := s.dir.Patient(ctx, q, c.PatientID)
	if err != nil {
		return guard.Facts{}, unknownRef(err, "id_paciente")
	}
	dentist, err := s.dir.Dentist(ctx, q, c.DentistID)
	if err != nil {
		return guard.Facts{}, unknownRef(err, "id_odontologo")
	}
	room, err := s.dir.Room(ctx, q, c.RoomID)
	if err != nil {
		return guard.Facts{}, unknownRef(err, "id_consultorio")
	}
	windows, err := s.sched.Windows(ctx, q, c.DentistID)
	if err != nil {
		return guard.Facts{}, err
	}
	dentistID := c.DentistID
	blocks, err := s.sched.BlocksInRange(ctx, q, c.Date, c.Date, &dentistID)
	if err != nil {
		return guard.Facts{}, err
	}
	occupied, err := s.appts.Occupying(ctx, q, c.Date, c.Time, c.DentistID, c.RoomID, c.PatientID, c.ID)
	if err != nil {
		return guard.Facts{}, err
	}
	return guard.Facts{
		RoomActive:    room.Active,
		Windows:       windows,
		Blocks:        blocks,
		Occupied:      occupied,
		PatientUserID: patient.UserID,
		DentistUserID: dentist.UserID,
	}, nil
}

// publish rereads the appointment inside tx and queues its event.
func (s *Service) publish(ctx context.Context, tx pgx.Tx, id int64, eventType, reason string) (model.AppointmentDetail, error) {
	d, err := s.appts.Detail(ctx, tx, id)
	if err != nil {
		return model.AppointmentDetail{}, err
	}
	payload := outbox.NewAppointmentPayload(d)
	payload.Reason = reason
	if err := s.emit(ctx, tx, id, eventType, payload); err != nil {
		return model.AppointmentDetail{}, err
	}
	return d, nil
}

// mutate locks an appointment, applies change and writes it back with its event.
// change returns false when nothing changed; the appointment is then returned as is.
func (s *Service) mutate(ctx context.Context, id int64, eventType string, reason func(model.Appointment) string, change func(tx pgx.Tx, a *model.Appointment) (bool, error)) (model.AppointmentDetail, error) {
	var out model.AppointmentDetail
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		a, err := s.appts.GetForUpdate(ctx, tx, id)
		if err != nil {
			return missing(err, msgAppointmentNotFound)
		}
		changed, err := change(tx, &a)
		if err != nil {
			return err
		}
		if !changed {
			out, err = s.appts.Detail(ctx, tx, id)
			return err
		}
		if err := s.appts.Update(ctx, tx, &a); err != nil {
			return err
		}
		why := ""
		if reason != nil {
			why = reason(a)
		}
		out, err = s.publish(ctx, tx, id, eventType, why)
		return err
	})
	return out, err
}

// Confirm moves a pending appointment to confirmed. Confirming twice is accepted. An
// empty source is inferred from the actor.
func (s *Service) Confirm(ctx context.Context, actor model.Actor, id int64, source model.ConfirmationSource) (model.AppointmentDetail, error) {
	p, err := s.policy.Current(ctx)
	if err != nil {
		return model.AppointmentDetail{}, err
	}
	now := s.clock()
	d, err := s.mutate(ctx, id, outbox.TypeAppointmentConfirmed, nil, func(_ pgx.Tx, a *model.Appointment) (bool, error) {
		already := a.Status == model.StatusConfirmed
		if err := lifecycle.Confirm(p, a, actor, source, s.loc, now); err != nil {
			return false, err
		}
		return !already || source != "", nil
	})
	s.record("confirm", d.Status, err)
	if err == nil {
		s.logger.Info("appointment confirmed", "id_cita", id, "fuente", source, "role", int(actor.Role))
	}
	return d, err
}

// Cancel cancels an appointment. Cancelling a cancelled appointment returns it
// unchanged. noShow is only honoured for staff.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id int64, noShow bool) (model.AppointmentDetail, error) {
	now := s.clock()
	reason := func(model.Appointment) string {
		if actor.Role.IsPatient() {
			return "paciente"
		}
		return "personal"
	}
	d, err := s.mutate(ctx, id, outbox.TypeAppointmentCancelled, reason, func(_ pgx.Tx, a *model.Appointment) (bool, error) {
		return lifecycle.Cancel(a, actor, noShow, now)
	})
	s.record("cancel", d.Status, err)
	if err == nil {
		s.logger.Info("appointment cancelled", "id_cita", id, "ausentismo", d.NoShow, "role", int(actor.Role))
	}
	return d, err
}

// RescheduleInput is the target slot. A nil RoomID keeps the current room.
type RescheduleInput struct {
	Date   time.Time
	Time   calendar.Clock
	RoomID *int64
}

func (s *Service) Reschedule(ctx context.Context, actor model.Actor, id int64, in RescheduleInput) (model.AppointmentDetail, error) {
	p, err := s.policy.Current(ctx)
	if err != nil {
		return model.AppointmentDetail{}, err
	}
	now := s.clock()
	to := lifecycle.Target{Date: calendar.Day(in.Date), Time: in.Time, RoomID: in.RoomID}

	d, err := s.mutate(ctx, id, outbox.TypeAppointmentRescheduled, nil, func(tx pgx.Tx, a *model.Appointment) (bool, error) {
		return true, s.reschedule(ctx, tx, p, actor, a, to, now)
	})
	s.record("reschedule", d.Status, err)
	if err == nil {
		s.logger.Info("appointment rescheduled",
			"id_cita", id,
			"fecha", calendar.FormatDate(d.Date),
			"hora", d.Time.String(),
			"role", int(actor.Role),
		)
	}
	return d, err
}

func (s *Service) reschedule(ctx context.Context, tx pgx.Tx, p policy.Policy, actor model.Actor, a *model.Appointment, to lifecycle.Target, now time.Time) error {
	var load lifecycle.PatientLoad
	if actor.Role.IsPatient() {
		var err error
		load, err = s.appts.PatientLoad(ctx, tx, a.PatientID, a.DentistID, to.Date, a.ID, lifecycle.CooldownSince(p, now))
		if err != nil {
			return err
		}
	}
	if err := lifecycle.CheckReschedule(p, *a, actor, to, s.loc, now, load); err != nil {
		return err
	}
	lifecycle.Reschedule(a, actor, to, now)

	c := guard.Candidate{
		ID:        a.ID,
		PatientID: a.PatientID,
		DentistID: a.DentistID,
		RoomID:    a.RoomID,
		Date:      a.Date,
		Time:      a.Time,
	}
	facts, err := s.facts(ctx, tx, c)
	if err != nil {
		return err
	}
	return guard.Check(c, facts)
}

// Complete marks an appointment as attended.
func (s *Service) Complete(ctx context.Context, actor model.Actor, id int64, observation *string) (model.AppointmentDetail, error) {
	if observation != nil {
		trimmed := strings.TrimSpace(*observation)
		observation = &trimmed
	}
	d, err := s.mutate(ctx, id, outbox.TypeAppointmentCompleted, nil, func(_ pgx.Tx, a *model.Appointment) (bool, error) {
		return true, lifecycle.Complete(a, actor, observation)
	})
	s.record("complete", d.Status, err)
	return d, err
}
