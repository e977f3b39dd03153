package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
)

var (
	loc     = time.FixedZone("ECT", -5*3600)
	now     = time.Date(2026, 3, 2, 8, 0, 0, 0, loc)
	patient = model.Actor{UserID: "u1", Role: model.RolePatient, PatientID: 10}
	staff   = model.Actor{UserID: "u2", Role: model.RoleClinicAdmin}
)

// appointmentIn builds an appointment of patient 10 starting the given hours after now.
func appointmentIn(hours int, status model.Status) *model.Appointment {
	day, clock := calendar.Split(now.Add(time.Duration(hours)*time.Hour), loc)
	return &model.Appointment{ID: 1, PatientID: 10, DentistID: 3, RoomID: 2, Date: day, Time: clock, Status: status}
}

func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	e, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	require.Equal(t, kind, e.Kind, "unexpected error %v", err)
	return e
}

func TestInitialStatus(t *testing.T) {
	p := policy.Defaults()
	assert.Equal(t, model.StatusConfirmed, InitialStatus(p, now.Add(23*time.Hour), now))
	assert.Equal(t, model.StatusPending, InitialStatus(p, now.Add(24*time.Hour), now))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(model.StatusPending, model.StatusConfirmed))
	assert.True(t, CanTransition(model.StatusMaintenance, model.StatusPending))
	assert.False(t, CanTransition(model.StatusCancelled, model.StatusPending))
	assert.False(t, CanTransition(model.StatusDone, model.StatusCancelled))
	assert.False(t, CanTransition(model.StatusMaintenance, model.StatusConfirmed))
}

func TestCheckPatientCreate_Order(t *testing.T) {
	p := policy.Defaults()
	start := now.Add(48 * time.Hour)

	e := requireKind(t, CheckPatientCreate(p, now.Add(time.Hour), now, PatientLoad{SameDay: 5}), apperr.KindValidation)
	assert.Contains(t, e.Field("fecha"), "anticipación")

	e = requireKind(t, CheckPatientCreate(p, start, now, PatientLoad{SameDay: 1, Active: 9}), apperr.KindValidation)
	assert.Contains(t, e.Field("fecha"), "por día")

	p.MaxPerDay = 2
	e = requireKind(t, CheckPatientCreate(p, start, now, PatientLoad{SameWeek: 5, Active: 9}), apperr.KindValidation)
	assert.Contains(t, e.Field("fecha"), "por semana")

	e = requireKind(t, CheckPatientCreate(p, start, now, PatientLoad{Active: 1, ActiveWithDentist: 1}), apperr.KindValidation)
	assert.NotEmpty(t, e.Field("id_paciente"))

	p.MaxActive = 3
	e = requireKind(t, CheckPatientCreate(p, start, now, PatientLoad{Active: 1, ActiveWithDentist: 1, RecentCancel: true}), apperr.KindValidation)
	assert.Contains(t, e.Field("id_odontologo"), "activa")

	e = requireKind(t, CheckPatientCreate(p, start, now, PatientLoad{RecentCancel: true}), apperr.KindValidation)
	assert.Contains(t, e.Field("id_odontologo"), "3 días")

	assert.NoError(t, CheckPatientCreate(p, start, now, PatientLoad{}))
}

func TestConfirm(t *testing.T) {
	p := policy.Defaults()

	a := appointmentIn(18, model.StatusPending)
	require.NoError(t, Confirm(p, a, patient, "", loc, now))
	assert.Equal(t, model.StatusConfirmed, a.Status)
	require.NotNil(t, a.ConfirmationSource)
	assert.Equal(t, model.SourceWeb, *a.ConfirmationSource)

	// Outside the patient window, staff can still confirm.
	a = appointmentIn(30, model.StatusPending)
	requireKind(t, Confirm(p, a, patient, "", loc, now), apperr.KindValidation)
	require.NoError(t, Confirm(p, a, staff, "", loc, now))
	assert.Equal(t, model.SourceReception, *a.ConfirmationSource)

	a = appointmentIn(18, model.StatusPending)
	require.NoError(t, Confirm(p, a, staff, model.SourceWhatsApp, loc, now))
	assert.Equal(t, model.SourceWhatsApp, *a.ConfirmationSource)

	a = appointmentIn(18, model.StatusPending)
	other := patient
	other.PatientID = 99
	requireKind(t, Confirm(p, a, other, "", loc, now), apperr.KindForbidden)

	for _, s := range []model.Status{model.StatusCancelled, model.StatusDone, model.StatusMaintenance} {
		e := requireKind(t, Confirm(p, appointmentIn(18, s), staff, "", loc, now), apperr.KindTransition)
		assert.Equal(t, string(s), e.State)
	}

	requireKind(t, Confirm(p, appointmentIn(18, model.StatusPending), staff, "fax", loc, now), apperr.KindValidation)
}

func TestCancel(t *testing.T) {
	a := appointmentIn(48, model.StatusPending)
	changed, err := Cancel(a, patient, true, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.StatusCancelled, a.Status)
	require.NotNil(t, a.CancelledAt)
	assert.Equal(t, model.RolePatient, *a.CancelledByRole)
	assert.False(t, a.NoShow, "patients cannot flag a no-show")

	changed, err = Cancel(a, patient, false, now)
	require.NoError(t, err)
	assert.False(t, changed)

	a = appointmentIn(48, model.StatusConfirmed)
	requireKind(t, func() error { _, err := Cancel(a, patient, false, now); return err }(), apperr.KindValidation)

	changed, err = Cancel(a, staff, true, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Nil(t, a.CancelledAt)
	assert.Equal(t, model.RoleClinicAdmin, *a.CancelledByRole)
	assert.True(t, a.NoShow)

	for _, s := range []model.Status{model.StatusDone, model.StatusMaintenance} {
		_, err := Cancel(appointmentIn(48, s), staff, false, now)
		requireKind(t, err, apperr.KindTransition)
	}
}

func TestReschedule(t *testing.T) {
	p := policy.Defaults()
	target := Target{Date: calendar.Day(now.AddDate(0, 0, 3)), Time: calendar.NewClock(10, 0)}

	a := appointmentIn(48, model.StatusPending)
	require.NoError(t, CheckReschedule(p, *a, patient, target, loc, now, PatientLoad{}))
	Reschedule(a, patient, target, now)
	assert.Equal(t, 1, a.Reschedules)
	assert.Equal(t, target.Time, a.Time)
	require.NotNil(t, a.RescheduledByRole)
	assert.Equal(t, model.RolePatient, *a.RescheduledByRole)

	e := requireKind(t, CheckReschedule(p, *a, patient, target, loc, now, PatientLoad{}), apperr.KindValidation)
	assert.Contains(t, e.Detail, "reprogramar")

	// Staff ignore the patient limits.
	require.NoError(t, CheckReschedule(p, *a, staff, target, loc, now, PatientLoad{SameDay: 4}))
	room := int64(8)
	target.RoomID = &room
	Reschedule(a, staff, target, now)
	assert.Equal(t, 1, a.Reschedules)
	assert.Equal(t, int64(8), a.RoomID)

	fresh := appointmentIn(48, model.StatusPending)
	requireKind(t, CheckReschedule(p, *fresh, patient, target, loc, now, PatientLoad{SameDay: 1}), apperr.KindValidation)
	soon := Target{Date: calendar.Day(now), Time: calendar.NewClock(9, 0)}
	e = requireKind(t, CheckReschedule(p, *fresh, patient, soon, loc, now, PatientLoad{}), apperr.KindValidation)
	assert.NotEmpty(t, e.Field("fecha"))

	other := patient
	other.PatientID = 77
	requireKind(t, CheckReschedule(p, *fresh, other, target, loc, now, PatientLoad{}), apperr.KindForbidden)
	requireKind(t, CheckReschedule(p, *appointmentIn(48, model.StatusConfirmed), patient, target, loc, now, PatientLoad{}), apperr.KindValidation)
	requireKind(t, CheckReschedule(p, *appointmentIn(48, model.StatusMaintenance), staff, target, loc, now, PatientLoad{}), apperr.KindTransition)
}

func TestComplete(t *testing.T) {
	obs := "limpieza completa"
	a := appointmentIn(1, model.StatusConfirmed)
	requireKind(t, Complete(a, patient, nil), apperr.KindForbidden)
	require.NoError(t, Complete(a, staff, &obs))
	assert.Equal(t, model.StatusDone, a.Status)
	assert.Equal(t, obs, *a.Observation)
	requireKind(t, Complete(a, staff, nil), apperr.KindTransition)
}
