package booking

import (
	"context"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/storage"
)

// Get returns one appointment. Patients only see their own; anything else reads as
// not found.
func (s *Service) Get(ctx context.Context, actor model.Actor, id int64) (model.AppointmentDetail, error) {
	d, err := s.appts.Get(ctx, id)
	if err != nil {
		return model.AppointmentDetail{}, missing(err, msgAppointmentNotFound)
	}
	if actor.Role.IsPatient() && d.PatientID != actor.PatientID {
		return model.AppointmentDetail{}, apperr.NotFound(msgAppointmentNotFound)
	}
	return d, nil
}

// List filters appointments. A patient's filter is always pinned to themselves.
func (s *Service) List(ctx context.Context, actor model.Actor, f storage.ListFilter) ([]model.AppointmentDetail, error) {
	if actor.Role.IsPatient() {
		if actor.PatientID == 0 {
			return []model.AppointmentDetail{}, nil
		}
		pid := actor.PatientID
		f.PatientID = &pid
	}
	items, err := s.appts.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.AppointmentDetail{}
	}
	return items, nil
}

// Next returns the patient's closest upcoming appointment, or nil.
func (s *Service) Next(ctx context.Context, actor model.Actor) (*model.AppointmentDetail, error) {
	if actor.PatientID == 0 {
		return nil, apperr.Invalid("No es un paciente válido.")
	}
	day, at := calendar.Split(s.clock(), s.loc)
	return s.appts.Next(ctx, actor.PatientID, day, at)
}

// History summarises the patient's completed visits. Callers that are not patients
// get an empty summary.
func (s *Service) History(ctx context.Context, actor model.Actor) (storage.History, error) {
	if actor.PatientID == 0 {
		return storage.History{}, nil
	}
	return s.appts.History(ctx, actor.PatientID)
}
