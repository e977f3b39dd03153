package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oralflow/oralflow/services/clinic-service/internal/booking"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/maintenance"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/outbox"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
)

var (
	clinicLoc = time.FixedZone("ECT", -5*3600)
	fixedNow  = time.Date(2026, 4, 1, 10, 0, 0, 0, clinicLoc)
	monday    = time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	stamp     = time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
)

var detailCols = []string{
	"id_cita", "id_paciente", "id_odontologo", "id_consultorio", "fecha", "hora", "motivo", "estado",
	"reprogramaciones", "cancelada_en", "cancelada_por_rol", "ausentismo", "reprogramada_en",
	"reprogramada_por_rol", "batch_id", "confirmacion_fuente", "observacion", "whatsapp_message_sid",
	"recordatorio_enviado_at", "created_at", "updated_at",
	"paciente", "celular", "odontologo", "numero",
}

func detailRow(id int64, status model.Status) []any {
	return []any{
		id, int64(10), int64(3), int64(2), monday, calendar.NewClock(9, 0), "control", status,
		0, (*time.Time)(nil), (*model.Role)(nil), false, (*time.Time)(nil),
		(*model.Role)(nil), (*uuid.UUID)(nil), (*model.ConfirmationSource)(nil), (*string)(nil), (*string)(nil),
		(*time.Time)(nil), stamp, stamp,
		"Ana Pérez", "0991234567", "Dr. Vera", "101",
	}
}

func newServer(t *testing.T) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return fixedNow }
	bookings := booking.New(mock, policy.NewStaticProvider(policy.Defaults()), outbox.NewRepository(), nil, logger,
		booking.Config{Location: clinicLoc, Now: now})
	bulk := maintenance.New(mock, outbox.NewRepository(), nil, logger, maintenance.Config{Location: clinicLoc, Now: now})

	mux := http.NewServeMux()
	Register(mux, bookings, bulk, logger)
	return mux, mock
}

type caller struct {
	userID  string
	role    string
	patient string
	dentist string
}

var (
	asPatient = caller{userID: "u-10", role: "2", patient: "10"}
	asAdmin   = caller{userID: "u-1", role: "4"}
	asDentist = caller{userID: "u-3", role: "3", dentist: "3"}
)

func do(t *testing.T, h http.Handler, c caller, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if c.userID != "" {
		req.Header.Set(HeaderUserID, c.userID)
	}
	if c.role != "" {
		req.Header.Set(HeaderRole, c.role)
	}
	if c.patient != "" {
		req.Header.Set(HeaderPatientID, c.patient)
	}
	if c.dentist != "" {
		req.Header.Set(HeaderDentistID, c.dentist)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, caller{}, http.MethodGet, "/api/v1/citas", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, caller{userID: "u-1", role: "9"}, http.MethodGet, "/api/v1/citas", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateReportsMissingFields(t *testing.T) {
	h, mock := newServer(t)

	rec := do(t, h, asPatient, http.MethodPost, "/api/v1/citas", `{"fecha":"2026-04-06"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Este campo es requerido.", body["id_odontologo"])
	assert.Equal(t, "Este campo es requerido.", body["motivo"])
	assert.Contains(t, body, "hora")
	assert.NotContains(t, body, "fecha")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsMalformedTime(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asPatient, http.MethodPost, "/api/v1/citas",
		`{"id_odontologo":3,"id_consultorio":2,"fecha":"2026-04-06","hora":"nueve","motivo":"control"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Formato inválido. Usa HH:MM.", decodeBody(t, rec)["hora"])
}

func TestCreateByStaffNeedsPatient(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asAdmin, http.MethodPost, "/api/v1/citas",
		`{"id_odontologo":3,"id_consultorio":2,"fecha":"2026-04-06","hora":"09:00","motivo":"control"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "id_paciente")
}

func TestGetAppointmentView(t *testing.T) {
	h, mock := newServer(t)

	mock.ExpectQuery("WHERE c.id_cita = \\$1").WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(detailCols).AddRow(detailRow(7, model.StatusConfirmed)...))

	rec := do(t, h, asPatient, http.MethodGet, "/api/v1/citas/7", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(7), body["id_cita"])
	assert.Equal(t, "confirmada", body["estado"])
	assert.Equal(t, "2026-04-06", body["fecha"])
	assert.Equal(t, "09:00", body["hora_inicio"])
	assert.Equal(t, "10:00", body["hora_fin"])
	assert.Equal(t, map[string]any{"id_consultorio": float64(2), "numero": "101"}, body["consultorio"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUnknownAppointment(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asAdmin, http.MethodGet, "/api/v1/citas/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRejectsBadFilters(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asAdmin, http.MethodGet, "/api/v1/citas?estado=perdida&fecha=06-04-2026", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "estado")
	assert.Contains(t, body, "fecha")
}

func TestConfirmRejectsUnknownSource(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asAdmin, http.MethodPatch, "/api/v1/citas/7/confirmar", `{"fuente":"fax"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["fuente"], "whatsapp")
}

func TestAvailabilityNeedsDentist(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asPatient, http.MethodGet, "/api/v1/citas/disponibilidad?fecha=2026-04-06", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Este campo es requerido.", decodeBody(t, rec)["id_odontologo"])
}

func TestMonthSummaryValidatesMonth(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asPatient, http.MethodGet, "/api/v1/citas/resumen-mensual?anio=2026&mes=13", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "mes")
}

func TestPolicyReadAndForbiddenWrite(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asPatient, http.MethodGet, "/api/v1/configuracion", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(12), decodeBody(t, rec)["horas_confirmar_hasta"])

	rec = do(t, h, asPatient, http.MethodPut, "/api/v1/configuracion", `{"max_citas_dia":2}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPolicyWriteValidates(t *testing.T) {
	h, mock := newServer(t)

	rec := do(t, h, asAdmin, http.MethodPut, "/api/v1/configuracion", `{"horas_confirmar_hasta":30}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "horas_confirmar_hasta")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkApplyRequiresConfirm(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asAdmin, http.MethodPost, "/api/v1/odontologos/3/apply-mantenimiento", `{"set_inactive":false}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Falta confirm", decodeBody(t, rec)["confirm"])

	rec = do(t, h, asDentist, http.MethodPost, "/api/v1/consultorios/2/apply-mantenimiento", `{"confirm":true}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBulkRejectsBadEffectiveFrom(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asAdmin, http.MethodPost, "/api/v1/consultorios/2/preview-mantenimiento", `{"effective_from":"mañana"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "effective_from")
}

func TestGroupRoutesRejectMalformedIDs(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asAdmin, http.MethodDelete, "/api/v1/bloqueos/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, asAdmin, http.MethodPost, "/api/v1/bloqueos/not-a-uuid/apply-mantenimiento", `{"confirm":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateGroupValidatesDates(t *testing.T) {
	h, _ := newServer(t)

	rec := do(t, h, asAdmin, http.MethodPost, "/api/v1/bloqueos", `{"fecha_inicio":"2026-13-01","fecha_fin":"2026-04-02","motivo":"feriado"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "fecha_inicio")
}

func TestEffectiveFrom(t *testing.T) {
	got, err := effectiveFrom("", clinicLoc)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = effectiveFrom("2026-04-06", clinicLoc)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(time.Date(2026, 4, 6, 0, 0, 0, 0, clinicLoc)))

	got, err = effectiveFrom("2026-04-06T14:00:00Z", clinicLoc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 4, 6, 9, 0, 0, 0, clinicLoc)))
}
