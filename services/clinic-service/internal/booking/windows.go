package booking

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/schedule"
)

func (s *Service) Windows(ctx context.Context, dentistID int64) ([]model.Window, error) {
	windows, err := s.sched.Windows(ctx, s.conn, dentistID)
	if err != nil {
		return nil, err
	}
	if windows == nil {
		windows = []model.Window{}
	}
	return windows, nil
}

// canEditSchedule lets admins edit any dentist and dentists edit their own.
func canEditSchedule(actor model.Actor, dentistID int64) error {
	if actor.Role.IsAdmin() {
		return nil
	}
	if actor.Role == model.RoleDentist && actor.DentistID != 0 && actor.DentistID == dentistID {
		return nil
	}
	return apperr.Forbidden("No tienes permisos para esta acción.")
}

// CreateWindow adds a weekly window. Overlap with the dentist's other active windows is
// checked under the dentist row lock.
func (s *Service) CreateWindow(ctx context.Context, actor model.Actor, w model.Window) (model.Window, error) {
	if err := canEditSchedule(actor, w.DentistID); err != nil {
		return model.Window{}, err
	}
	if err := schedule.ValidateWindow(w); err != nil {
		return model.Window{}, err
	}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.dir.LockDentist(ctx, tx, w.DentistID); err != nil {
			return unknownRef(err, "id_odontologo")
		}
		existing, err := s.sched.Windows(ctx, tx, w.DentistID)
		if err != nil {
			return err
		}
		if err := schedule.CheckWindows(w, existing); err != nil {
			return err
		}
		return s.sched.InsertWindow(ctx, tx, &w)
	})
	if err != nil {
		return model.Window{}, err
	}
	s.logger.Info("window created", "id_horario", w.ID, "id_odontologo", w.DentistID, "dia_semana", w.Weekday)
	return w, nil
}

// WindowPatch carries the editable fields of a window. Nil fields keep their value.
type WindowPatch struct {
	Start  *calendar.Clock
	End    *calendar.Clock
	Active *bool
}

func (s *Service) UpdateWindow(ctx context.Context, actor model.Actor, id int64, patch WindowPatch) (model.Window, error) {
	var out model.Window
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		w, err := s.sched.Window(ctx, tx, id)
		if err != nil {
			return missing(err, "Horario no encontrado.")
		}
		if err := canEditSchedule(actor, w.DentistID); err != nil {
			return err
		}
		if _, err := s.dir.LockDentist(ctx, tx, w.DentistID); err != nil {
			return err
		}
		if patch.Start != nil {
			w.Start = *patch.Start
		}
		if patch.End != nil {
			w.End = *patch.End
		}
		if patch.Active != nil {
			w.Active = *patch.Active
		}
		if err := schedule.ValidateWindow(w); err != nil {
			return err
		}
		existing, err := s.sched.Windows(ctx, tx, w.DentistID)
		if err != nil {
			return err
		}
		if err := schedule.CheckWindows(w, existing); err != nil {
			return err
		}
		if err := s.sched.UpdateWindow(ctx, tx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	return out, err
}
