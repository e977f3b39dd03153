package booking

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/outbox"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
)

var (
	clinicLoc = time.FixedZone("ECT", -5*3600)
	// Wednesday morning; the booked date below is the following Monday.
	fixedNow = time.Date(2026, 4, 1, 10, 0, 0, 0, clinicLoc)
	monday   = time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	stamp    = time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
)

var appointmentCols = []string{
	"id_cita", "id_paciente", "id_odontologo", "id_consultorio", "fecha", "hora", "motivo", "estado",
	"reprogramaciones", "cancelada_en", "cancelada_por_rol", "ausentismo", "reprogramada_en",
	"reprogramada_por_rol", "batch_id", "confirmacion_fuente", "observacion", "whatsapp_message_sid",
	"recordatorio_enviado_at", "created_at", "updated_at",
}

var detailCols = append(append([]string{}, appointmentCols...), "paciente", "celular", "odontologo", "numero")

func appointmentRow(id int64, status model.Status) []any {
	return []any{
		id, int64(10), int64(3), int64(2), monday, calendar.NewClock(9, 0), "control", status,
		0, (*time.Time)(nil), (*model.Role)(nil), false, (*time.Time)(nil),
		(*model.Role)(nil), (*uuid.UUID)(nil), (*model.ConfirmationSource)(nil), (*string)(nil), (*string)(nil),
		(*time.Time)(nil), stamp, stamp,
	}
}

func detailRow(id int64, status model.Status) []any {
	return append(appointmentRow(id, status), "Ana Pérez", "0991234567", "Dr. Vera", "101")
}

func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}

func newService(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	svc := New(mock, policy.NewStaticProvider(policy.Defaults()), outbox.NewRepository(), nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{Location: clinicLoc, Now: func() time.Time { return fixedNow }})
	return svc, mock
}

var (
	patient = model.Actor{UserID: "u-10", Role: model.RolePatient, PatientID: 10}
	admin   = model.Actor{UserID: "u-1", Role: model.RoleClinicAdmin}
)

// expectFacts queues the lookups the guard needs for the 09:00 Monday slot.
func expectFacts(mock pgxmock.PgxPoolIface, occupied ...[]any) {
	mock.ExpectQuery("FROM pacientes").WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"id_paciente", "id_usuario", "nombre", "celular"}).
			AddRow(int64(10), "u-10", "Ana Pérez", "0991234567"))
	mock.ExpectQuery("FROM odontologos").WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id_odontologo", "id_usuario", "nombre", "activo"}).
			AddRow(int64(3), "u-3", "Dr. Vera", true))
	mock.ExpectQuery("FROM consultorios").WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"id_consultorio", "numero", "descripcion", "activo"}).
			AddRow(int64(2), "101", "", true))
	mock.ExpectQuery("FROM odontologo_horarios").WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id_horario", "id_odontologo", "dia_semana", "hora_inicio", "hora_fin", "vigente"}).
			AddRow(int64(1), int64(3), 0, calendar.NewClock(8, 0), calendar.NewClock(13, 0), true))
	mock.ExpectQuery("FROM bloqueos_dia b").WithArgs(anyArgs(4)...).
		WillReturnRows(pgxmock.NewRows([]string{"id_bloqueo", "grupo", "id_odontologo", "fecha", "recurrente_anual", "motivo"}))
	rows := pgxmock.NewRows(appointmentCols)
	for _, r := range occupied {
		rows.AddRow(r...)
	}
	mock.ExpectQuery("AND c.id_cita <> \\$6").WithArgs(anyArgs(6)...).WillReturnRows(rows)
}

func TestCreateByPatient(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	expectFacts(mock)
	mock.ExpectQuery("count\\(\\*\\) FILTER").WithArgs(anyArgs(8)...).
		WillReturnRows(pgxmock.NewRows([]string{"dia", "semana", "activas", "con_odo", "cooldown"}).AddRow(0, 0, 0, 0, false))
	mock.ExpectQuery("INSERT INTO citas").
		WithArgs(int64(10), int64(3), int64(2), monday, calendar.NewClock(9, 0), "control", "pendiente", 0).
		WillReturnRows(pgxmock.NewRows([]string{"id_cita", "created_at", "updated_at"}).AddRow(int64(42), stamp, stamp))
	mock.ExpectQuery("WHERE c.id_cita = \\$1").WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(detailCols).AddRow(detailRow(42, model.StatusPending)...))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), "cita", "42", outbox.TypeAppointmentCreated, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	// The patient id in the body is ignored for patients.
	d, err := svc.Create(context.Background(), patient, CreateInput{
		PatientID: 99, DentistID: 3, RoomID: 2, Date: monday, Time: calendar.NewClock(9, 0), Reason: "  control ",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), d.ID)
	assert.Equal(t, model.StatusPending, d.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsBusyDentist(t *testing.T) {
	svc, mock := newService(t)

	busy := appointmentRow(5, model.StatusConfirmed)
	busy[1] = int64(77) // another patient
	busy[3] = int64(8)  // another room

	mock.ExpectBegin()
	expectFacts(mock, busy)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), admin, CreateInput{
		PatientID: 10, DentistID: 3, RoomID: 2, Date: monday, Time: calendar.NewClock(9, 0), Reason: "control",
	})
	e, ok := apperr.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperr.KindConflict, e.Kind)
	assert.NotEmpty(t, e.Field("hora"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequiresReason(t *testing.T) {
	svc, mock := newService(t)

	_, err := svc.Create(context.Background(), admin, CreateInput{PatientID: 10, DentistID: 3, RoomID: 2, Date: monday, Time: calendar.NewClock(9, 0), Reason: "   "})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentRow(7, model.StatusCancelled)...))
	mock.ExpectQuery("WHERE c.id_cita = \\$1").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(detailCols).AddRow(detailRow(7, model.StatusCancelled)...))
	mock.ExpectCommit()

	d, err := svc.Cancel(context.Background(), admin, 7, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, d.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmByStaffWritesEvent(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentRow(7, model.StatusPending)...))
	mock.ExpectQuery("UPDATE citas").WithArgs(anyArgs(13)...).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(stamp))
	mock.ExpectQuery("WHERE c.id_cita = \\$1").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(detailCols).AddRow(detailRow(7, model.StatusConfirmed)...))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), "cita", "7", outbox.TypeAppointmentConfirmed, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	d, err := svc.Confirm(context.Background(), admin, 7, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, d.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmByPatientOutsideWindow(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentRow(7, model.StatusPending)...))
	mock.ExpectRollback()

	_, err := svc.Confirm(context.Background(), patient, 7, "")
	e, ok := apperr.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Detail, "Solo puedes confirmar")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteUnknownAppointment(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows(appointmentCols))
	mock.ExpectRollback()

	_, err := svc.Complete(context.Background(), admin, 404, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHidesOtherPatients(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectQuery("WHERE c.id_cita = \\$1").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(detailCols).AddRow(detailRow(7, model.StatusPending)...))

	other := model.Actor{UserID: "u-11", Role: model.RolePatient, PatientID: 11}
	_, err := svc.Get(context.Background(), other, 7)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWindowRejectsOverlap(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM odontologos").WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id_odontologo", "id_usuario", "nombre", "activo"}).
			AddRow(int64(3), "u-3", "Dr. Vera", true))
	mock.ExpectQuery("FROM odontologo_horarios").WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id_horario", "id_odontologo", "dia_semana", "hora_inicio", "hora_fin", "vigente"}).
			AddRow(int64(1), int64(3), 0, calendar.NewClock(8, 0), calendar.NewClock(12, 0), true))
	mock.ExpectRollback()

	_, err := svc.CreateWindow(context.Background(), admin, model.Window{
		DentistID: 3, Weekday: 0, Start: calendar.NewClock(11, 0), End: calendar.NewClock(14, 0), Active: true,
	})
	e, ok := apperr.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "Se solapa con el horario 08:00-12:00.", e.Field("hora_inicio"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWindowForOtherDentistIsForbidden(t *testing.T) {
	svc, _ := newService(t)

	dentist := model.Actor{UserID: "u-4", Role: model.RoleDentist, DentistID: 4}
	_, err := svc.CreateWindow(context.Background(), dentist, model.Window{
		DentistID: 3, Start: calendar.NewClock(8, 0), End: calendar.NewClock(12, 0), Active: true,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestSavePolicyValidates(t *testing.T) {
	svc, mock := newService(t)

	p := policy.Defaults()
	p.ConfirmUntilHours = 30
	_, err := svc.SavePolicy(context.Background(), admin, p)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.SavePolicy(context.Background(), patient, policy.Defaults())
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	require.NoError(t, mock.ExpectationsWereMet())
}
