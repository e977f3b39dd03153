package sweep

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/outbox"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
)

var (
	now   = time.Date(2026, 4, 5, 22, 0, 0, 0, time.UTC)
	day   = time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	stamp = time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
)

var detailCols = []string{
	"id_cita", "id_paciente", "id_odontologo", "id_consultorio", "fecha", "hora", "motivo", "estado",
	"reprogramaciones", "cancelada_en", "cancelada_por_rol", "ausentismo", "reprogramada_en",
	"reprogramada_por_rol", "batch_id", "confirmacion_fuente", "observacion", "whatsapp_message_sid",
	"recordatorio_enviado_at", "created_at", "updated_at",
	"paciente", "celular", "odontologo", "numero",
}

func pendingRow(id int64) []any {
	return []any{
		id, int64(10), int64(3), int64(2), day, calendar.NewClock(9, 0), "control", model.StatusPending,
		0, (*time.Time)(nil), (*model.Role)(nil), false, (*time.Time)(nil),
		(*model.Role)(nil), (*uuid.UUID)(nil), (*model.ConfirmationSource)(nil), (*string)(nil), (*string)(nil),
		(*time.Time)(nil), stamp, stamp,
		"Ana Pérez", "0991234567", "Dr. Vera", "101",
	}
}

func newSweeper(t *testing.T) (*Sweeper, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s := New(mock, policy.NewStaticProvider(policy.Defaults()), outbox.NewRepository(), nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config{Location: time.UTC, Now: func() time.Time { return now }})
	return s, mock
}

func TestAutoCancelDryRunWritesNothing(t *testing.T) {
	s, mock := newSweeper(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SKIP LOCKED").WithArgs("UTC", now.Add(12*time.Hour), 200).
		WillReturnRows(pgxmock.NewRows(detailCols).AddRow(pendingRow(1)...).AddRow(pendingRow(2)...))
	mock.ExpectCommit()

	res, err := s.AutoCancel(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, []int64{1, 2}, res.IDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAutoCancelAttributesToPatient(t *testing.T) {
	s, mock := newSweeper(t)

	var payload []byte
	mock.ExpectBegin()
	mock.ExpectQuery("SKIP LOCKED").WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(detailCols).AddRow(pendingRow(1)...))
	mock.ExpectQuery("UPDATE citas").
		WithArgs(int64(1), int64(2), day, calendar.NewClock(9, 0), "cancelada", 0, pgxmock.AnyArg(), pgxmock.AnyArg(),
			false, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), "cita", "1", outbox.TypeAppointmentCancelled, captureArg(&payload), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := s.AutoCancel(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	var body outbox.AppointmentPayload
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, ReasonAutoCancelled, body.Reason)
	assert.Equal(t, model.StatusCancelled, model.Status(body.Status))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemindersStampsSentRows(t *testing.T) {
	s, mock := newSweeper(t)

	mock.ExpectBegin()
	mock.ExpectQuery("recordatorio_enviado_at IS NULL").
		WithArgs("UTC", now.Add(23*time.Hour), now.Add(25*time.Hour), 200).
		WillReturnRows(pgxmock.NewRows(detailCols).AddRow(pendingRow(7)...))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), "cita", "7", outbox.TypeReminderDue, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("SET recordatorio_enviado_at").WithArgs([]int64{7}, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	res, err := s.Reminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, res.IDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemindersWithNothingDue(t *testing.T) {
	s, mock := newSweeper(t)

	mock.ExpectBegin()
	mock.ExpectQuery("recordatorio_enviado_at IS NULL").WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(detailCols))
	mock.ExpectCommit()

	res, err := s.Reminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.NotNil(t, res.IDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

// captured records the argument it is matched against.
type captured struct{ dst *[]byte }

func captureArg(dst *[]byte) pgxmock.Argument { return captured{dst: dst} }

func (c captured) Match(v any) bool {
	b, ok := v.([]byte)
	if ok {
		*c.dst = b
	}
	return ok
}
