package maintenance

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/schedule"
)

// ApplyOptions controls an apply on a dentist or room. Deactivate is only honoured
// when the maintenance itself succeeds.
type ApplyOptions struct {
	Confirm    bool
	From       *time.Time
	Deactivate bool
}

// ReactivateOptions controls a reactivation on a dentist or room.
type ReactivateOptions struct {
	From     *time.Time
	Activate bool
}

type DentistState struct {
	ID     int64 `json:"id_odontologo"`
	Active bool  `json:"is_active"`
}

type RoomState struct {
	ID     int64  `json:"id_consultorio"`
	Number string `json:"numero"`
	Active bool   `json:"estado"`
}

type DentistApplied struct {
	Applied
	Dentist DentistState `json:"odontologo"`
}

type DentistReactivated struct {
	Reactivated
	Dentist DentistState `json:"odontologo"`
}

type RoomApplied struct {
	Applied
	Room RoomState `json:"consultorio"`
}

type RoomReactivated struct {
	Reactivated
	Room RoomState `json:"consultorio"`
}

func dentistTarget(id int64) target { return target{scope: scopeDentist, id: strconv.FormatInt(id, 10)} }
func roomTarget(id int64) target    { return target{scope: scopeRoom, id: strconv.FormatInt(id, 10)} }

// PreviewDentist lists the future active appointments of a dentist.
func (s *Service) PreviewDentist(ctx context.Context, actor model.Actor, id int64, from *time.Time) (Preview, error) {
	if err := requireAdmin(actor); err != nil {
		return Preview{}, err
	}
	if _, err := s.dir.Dentist(ctx, s.conn, id); err != nil {
		return Preview{}, missing(err, "Odontólogo no encontrado.")
	}
	sc := s.scope(from, activeStatuses)
	sc.DentistID = &id
	return s.preview(ctx, sc)
}

// ApplyDentist moves the dentist's future active appointments to maintenance and,
// when asked, deactivates the dentist in the same transaction.
func (s *Service) ApplyDentist(ctx context.Context, actor model.Actor, id int64, opts ApplyOptions) (DentistApplied, error) {
	if err := requireAdmin(actor); err != nil {
		return DentistApplied{}, err
	}
	if err := requireConfirm(opts.Confirm); err != nil {
		return DentistApplied{}, err
	}
	t := dentistTarget(id)
	var out DentistApplied
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		d, err := s.dir.LockDentist(ctx, tx, id)
		if err != nil {
			return missing(err, "Odontólogo no encontrado.")
		}
		sc := s.scope(opts.From, activeStatuses)
		sc.DentistID = &id
		if out.Applied, err = s.applyIn(ctx, tx, actor, sc, t); err != nil {
			return err
		}
		out.Dentist = DentistState{ID: d.ID, Active: d.Active}
		if opts.Deactivate {
			if err := s.dir.SetDentistActive(ctx, tx, id, false); err != nil {
				return err
			}
			out.Dentist.Active = false
		}
		return nil
	})
	if err != nil {
		return DentistApplied{}, err
	}
	s.logApplied("mantenimiento", t, out.Total, &out.BatchID)
	return out, nil
}

// ReactivateDentist returns the dentist's future maintenance appointments to pending
// and, when asked, reactivates the dentist.
func (s *Service) ReactivateDentist(ctx context.Context, actor model.Actor, id int64, opts ReactivateOptions) (DentistReactivated, error) {
	if err := requireAdmin(actor); err != nil {
		return DentistReactivated{}, err
	}
	t := dentistTarget(id)
	var out DentistReactivated
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		d, err := s.dir.LockDentist(ctx, tx, id)
		if err != nil {
			return missing(err, "Odontólogo no encontrado.")
		}
		sc := s.scope(opts.From, maintenanceStatuses)
		sc.DentistID = &id
		if out.Reactivated, err = s.reactivateIn(ctx, tx, sc, t); err != nil {
			return err
		}
		out.Dentist = DentistState{ID: d.ID, Active: d.Active}
		if opts.Activate {
			if err := s.dir.SetDentistActive(ctx, tx, id, true); err != nil {
				return err
			}
			out.Dentist.Active = true
		}
		return nil
	})
	if err != nil {
		return DentistReactivated{}, err
	}
	s.logApplied("reactivar", t, out.Total, nil)
	return out, nil
}

// PreviewWindowChange lists the future active appointments of a dentist that would
// fall outside the proposed weekly windows. Nothing is saved.
func (s *Service) PreviewWindowChange(ctx context.Context, actor model.Actor, id int64, proposed []model.Window, from *time.Time) (Preview, error) {
	if err := requireAdmin(actor); err != nil {
		return Preview{}, err
	}
	for i := range proposed {
		proposed[i].DentistID = id
		proposed[i].Active = true
		if err := schedule.ValidateWindow(proposed[i]); err != nil {
			return Preview{}, err
		}
	}
	if _, err := s.dir.Dentist(ctx, s.conn, id); err != nil {
		return Preview{}, missing(err, "Odontólogo no encontrado.")
	}
	sc := s.scope(from, activeStatuses)
	sc.DentistID = &id
	details, err := s.appts.SelectScope(ctx, s.conn, sc, false)
	if err != nil {
		return Preview{}, err
	}
	outside := lo.Filter(details, func(d model.AppointmentDetail, _ int) bool {
		return !schedule.Contains(schedule.ForWeekday(proposed, calendar.Weekday(d.Date)), d.Time)
	})
	return newPreview(outside), nil
}

// PreviewRoom lists the future active appointments held in a room.
func (s *Service) PreviewRoom(ctx context.Context, actor model.Actor, id int64, from *time.Time) (Preview, error) {
	if err := requireAdmin(actor); err != nil {
		return Preview{}, err
	}
	if _, err := s.dir.Room(ctx, s.conn, id); err != nil {
		return Preview{}, missing(err, "Consultorio no encontrado.")
	}
	sc := s.scope(from, activeStatuses)
	sc.RoomID = &id
	return s.preview(ctx, sc)
}

func (s *Service) ApplyRoom(ctx context.Context, actor model.Actor, id int64, opts ApplyOptions) (RoomApplied, error) {
	if err := requireAdmin(actor); err != nil {
		return RoomApplied{}, err
	}
	if err := requireConfirm(opts.Confirm); err != nil {
		return RoomApplied{}, err
	}
	t := roomTarget(id)
	var out RoomApplied
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		r, err := s.dir.LockRoom(ctx, tx, id)
		if err != nil {
			return missing(err, "Consultorio no encontrado.")
		}
		sc := s.scope(opts.From, activeStatuses)
		sc.RoomID = &id
		if out.Applied, err = s.applyIn(ctx, tx, actor, sc, t); err != nil {
			return err
		}
		out.Room = RoomState{ID: r.ID, Number: r.Number, Active: r.Active}
		if opts.Deactivate {
			if err := s.dir.SetRoomActive(ctx, tx, id, false); err != nil {
				return err
			}
			out.Room.Active = false
		}
		return nil
	})
	if err != nil {
		return RoomApplied{}, err
	}
	s.logApplied("mantenimiento", t, out.Total, &out.BatchID)
	return out, nil
}

func (s *Service) ReactivateRoom(ctx context.Context, actor model.Actor, id int64, opts ReactivateOptions) (RoomReactivated, error) {
	if err := requireAdmin(actor); err != nil {
		return RoomReactivated{}, err
	}
	t := roomTarget(id)
	var out RoomReactivated
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		r, err := s.dir.LockRoom(ctx, tx, id)
		if err != nil {
			return missing(err, "Consultorio no encontrado.")
		}
		sc := s.scope(opts.From, maintenanceStatuses)
		sc.RoomID = &id
		if out.Reactivated, err = s.reactivateIn(ctx, tx, sc, t); err != nil {
			return err
		}
		out.Room = RoomState{ID: r.ID, Number: r.Number, Active: r.Active}
		if opts.Activate {
			if err := s.dir.SetRoomActive(ctx, tx, id, true); err != nil {
				return err
			}
			out.Room.Active = true
		}
		return nil
	})
	if err != nil {
		return RoomReactivated{}, err
	}
	s.logApplied("reactivar", t, out.Total, nil)
	return out, nil
}
