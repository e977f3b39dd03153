package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
)

var appointmentCols = []string{
	"id_cita", "id_paciente", "id_odontologo", "id_consultorio", "fecha", "hora", "motivo", "estado",
	"reprogramaciones", "cancelada_en", "cancelada_por_rol", "ausentismo", "reprogramada_en",
	"reprogramada_por_rol", "batch_id", "confirmacion_fuente", "observacion", "whatsapp_message_sid",
	"recordatorio_enviado_at", "created_at", "updated_at",
}

var detailCols = append(append([]string{}, appointmentCols...), "paciente", "celular", "odontologo", "numero")

var (
	day     = time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	created = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
)

func appointmentValues(id int64, status model.Status) []any {
	return []any{
		id, int64(10), int64(3), int64(2), day, calendar.NewClock(9, 0), "control", status,
		0, (*time.Time)(nil), (*model.Role)(nil), false, (*time.Time)(nil),
		(*model.Role)(nil), (*uuid.UUID)(nil), (*model.ConfirmationSource)(nil), (*string)(nil), (*string)(nil),
		(*time.Time)(nil), created, created,
	}
}

func detailValues(id int64, status model.Status) []any {
	return append(appointmentValues(id, status), "Ana Pérez", "0991234567", "Dr. Vera", "101")
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestInsertMapsUniqueViolation(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)

	mock.ExpectQuery("INSERT INTO citas").
		WithArgs(int64(10), int64(3), int64(2), day, calendar.NewClock(9, 0), "control", "pendiente", 0).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_cita_consul_fecha_hora_activa"})

	a := &model.Appointment{PatientID: 10, DentistID: 3, RoomID: 2, Date: day, Time: calendar.NewClock(9, 0), Reason: "control", Status: model.StatusPending}
	err := repo.Insert(context.Background(), mock, a)

	e, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	assert.Equal(t, apperr.KindConflict, e.Kind)
	assert.NotEmpty(t, e.Field("id_consultorio"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReturnsID(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)

	mock.ExpectQuery("INSERT INTO citas").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id_cita", "created_at", "updated_at"}).AddRow(int64(42), created, created))

	a := &model.Appointment{PatientID: 10, DentistID: 3, RoomID: 2, Date: day, Time: calendar.NewClock(9, 0), Reason: "control", Status: model.StatusPending}
	require.NoError(t, repo.Insert(context.Background(), mock, a))
	assert.Equal(t, int64(42), a.ID)
	assert.Equal(t, created, a.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForUpdate(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)

	mock.ExpectQuery("FROM citas c\\s+WHERE c.id_cita = \\$1\\s+FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentValues(7, model.StatusConfirmed)...))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(8)).
		WillReturnError(pgx.ErrNoRows)

	a, err := repo.GetForUpdate(context.Background(), mock, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, a.Status)
	assert.Equal(t, calendar.NewClock(9, 0), a.Time)
	assert.Nil(t, a.CancelledAt)

	_, err = repo.GetForUpdate(context.Background(), mock, 8)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientLoad(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)
	since := created.AddDate(0, 0, -3)

	monday, sunday := calendar.WeekBounds(day)
	mock.ExpectQuery("count\\(\\*\\) FILTER").
		WithArgs(int64(10), int64(3), day, monday, sunday, int64(0), []string{"cancelada", "mantenimiento"}, since).
		WillReturnRows(pgxmock.NewRows([]string{"dia", "semana", "activas", "con_odo", "cooldown"}).AddRow(1, 2, 1, 0, true))

	load, err := repo.PatientLoad(context.Background(), mock, 10, 3, day, 0, since)
	require.NoError(t, err)
	assert.Equal(t, 1, load.SameDay)
	assert.Equal(t, 2, load.SameWeek)
	assert.True(t, load.RecentCancel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectScopeRecurringDates(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)
	dentist := int64(3)

	scope := Scope{
		DentistID: &dentist,
		Dates:     &DateRange{Start: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Recurring: true},
		FromDate:  day,
		FromTime:  calendar.NewClock(8, 0),
		Statuses:  []model.Status{model.StatusPending, model.StatusConfirmed},
	}
	mock.ExpectQuery("to_char\\(c.fecha, 'MM-DD'\\) = ANY.*FOR UPDATE OF c").
		WithArgs([]string{"pendiente", "confirmada"}, day, day, calendar.NewClock(8, 0), int64(3), []string{"12-31", "01-01"}).
		WillReturnRows(pgxmock.NewRows(detailCols).AddRow(detailValues(5, model.StatusPending)...))

	items, err := repo.SelectScope(context.Background(), mock, scope, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ana Pérez", items[0].PatientName)
	assert.Equal(t, "101", items[0].RoomNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkMaintenance(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)
	batch := uuid.New()
	now := created

	mock.ExpectExec("SET estado = 'mantenimiento'").
		WithArgs([]int64{1, 2}, now, 4, batch).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := repo.MarkMaintenance(context.Background(), mock, []int64{1, 2}, batch, model.RoleClinicAdmin, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.MarkMaintenance(context.Background(), mock, nil, batch, model.RoleClinicAdmin, now)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextReturnsNilWhenNone(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)

	mock.ExpectQuery("ORDER BY c.fecha, c.hora\\s+LIMIT 1").
		WithArgs(int64(10), day, calendar.NewClock(7, 0), []string{"cancelada", "mantenimiento"}).
		WillReturnError(pgx.ErrNoRows)

	next, err := repo.Next(context.Background(), 10, day, calendar.NewClock(7, 0))
	require.NoError(t, err)
	assert.Nil(t, next)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListBuildsFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewAppointmentRepository(mock)
	patient := int64(10)
	status := model.StatusPending

	mock.ExpectQuery("WHERE c.id_paciente = \\$1 AND c.estado = \\$2 ORDER BY c.fecha DESC, c.hora DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(int64(10), "pendiente", 500, 0).
		WillReturnRows(pgxmock.NewRows(detailCols))

	items, err := repo.List(context.Background(), ListFilter{PatientID: &patient, Status: &status, Limit: 9000})
	require.NoError(t, err)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadPolicy(t *testing.T) {
	mock := newMock(t)
	repo := NewPolicyRepository(mock)

	mock.ExpectQuery("FROM configuracion").WillReturnError(pgx.ErrNoRows)
	_, ok, err := repo.LoadPolicy(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	d := policy.Defaults()
	mock.ExpectQuery("FROM configuracion").WillReturnRows(pgxmock.NewRows([]string{
		"a", "b", "c", "d", "e", "f", "g", "h", "i", "j",
	}).AddRow(2, d.ConfirmFromHours, d.ConfirmUntilHours, d.AutoConfirmHours, d.MaxPerDay, d.MaxPerWeek,
		d.CooldownDays, d.MaxReschedules, d.MinLeadHours, "0987654321"))
	p, ok, err := repo.LoadPolicy(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, p.MaxActive)
	assert.Equal(t, "0987654321", p.ContactPhone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePolicy(t *testing.T) {
	mock := newMock(t)
	repo := NewPolicyRepository(mock)
	p := policy.Defaults()

	mock.ExpectExec("INSERT INTO configuracion").
		WithArgs(p.MaxActive, p.ConfirmFromHours, p.ConfirmUntilHours, p.AutoConfirmHours, p.MaxPerDay,
			p.MaxPerWeek, p.CooldownDays, p.MaxReschedules, p.MinLeadHours, p.ContactPhone).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.SavePolicy(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertGroupExpandsDays(t *testing.T) {
	mock := newMock(t)
	repo := NewScheduleRepository(mock)
	g := model.BlockGroup{ID: uuid.New(), Start: day, End: day.AddDate(0, 0, 2), Reason: "obra"}

	mock.ExpectExec("FROM unnest").
		WithArgs(g.ID, (*int64)(nil), false, "obra", []time.Time{day, day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)}).
		WillReturnResult(pgxmock.NewResult("INSERT", 3))

	require.NoError(t, repo.InsertGroup(context.Background(), mock, g))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapWriteError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  apperr.Kind
		field string
	}{
		{"dentist slot", &pgconn.PgError{Code: "23505", ConstraintName: "uq_cita_odo_fecha_hora_activa"}, apperr.KindConflict, "hora"},
		{"patient slot", &pgconn.PgError{Code: "23505", ConstraintName: "uq_cita_paciente_fecha_hora_activa"}, apperr.KindConflict, "id_paciente"},
		{"window", &pgconn.PgError{Code: "23505", ConstraintName: constraintWindowUnique}, apperr.KindValidation, "hora_inicio"},
		{"minute check", &pgconn.PgError{Code: "23514", ConstraintName: checkAppointmentMinute}, apperr.KindValidation, "hora"},
		{"restrict", &pgconn.PgError{Code: "23503"}, apperr.KindValidation, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := apperr.As(MapWriteError(tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.kind, e.Kind)
			if tt.field != "" {
				assert.NotEmpty(t, e.Field(tt.field))
			}
		})
	}

	plain := errors.New("connection reset")
	assert.Same(t, plain, MapWriteError(plain))
	assert.NoError(t, MapWriteError(nil))
}
