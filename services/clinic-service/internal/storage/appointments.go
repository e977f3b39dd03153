package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/internal/availability"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/lifecycle"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

const appointmentColumns = `c.id_cita, c.id_paciente, c.id_odontologo, c.id_consultorio, c.fecha, c.hora,
	c.motivo, c.estado, c.reprogramaciones, c.cancelada_en, c.cancelada_por_rol, c.ausentismo,
	c.reprogramada_en, c.reprogramada_por_rol, c.batch_id, c.confirmacion_fuente, c.observacion,
	c.whatsapp_message_sid, c.recordatorio_enviado_at, c.created_at, c.updated_at`

const detailColumns = appointmentColumns + `, p.nombre, p.celular, o.nombre, k.numero`

const detailFrom = `FROM citas c
	JOIN pacientes p ON p.id_paciente = c.id_paciente
	JOIN odontologos o ON o.id_odontologo = c.id_odontologo
	JOIN consultorios k ON k.id_consultorio = c.id_consultorio`

// inactiveStates never count towards a patient's agenda.
var inactiveStates = []string{string(model.StatusCancelled), string(model.StatusMaintenance)}

type AppointmentRepository struct {
	conn db.Conn
}

func NewAppointmentRepository(conn db.Conn) *AppointmentRepository {
	return &AppointmentRepository{conn: conn}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.conn.Begin(ctx)
}

func appointmentDest(a *model.Appointment) []any {
	return []any{
		&a.ID,
		&a.PatientID,
		&a.DentistID,
		&a.RoomID,
		&a.Date,
		&a.Time,
		&a.Reason,
		&a.Status,
		&a.Reschedules,
		&a.CancelledAt,
		&a.CancelledByRole,
		&a.NoShow,
		&a.RescheduledAt,
		&a.RescheduledByRole,
		&a.BatchID,
		&a.ConfirmationSource,
		&a.Observation,
		&a.WhatsAppMessageSID,
		&a.ReminderSentAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
}

func scanDetail(row pgx.Row) (model.AppointmentDetail, error) {
	var d model.AppointmentDetail
	dest := append(appointmentDest(&d.Appointment), &d.PatientName, &d.PatientPhone, &d.DentistName, &d.RoomNumber)
	if err := row.Scan(dest...); err != nil {
		return model.AppointmentDetail{}, err
	}
	return d, nil
}

func collectDetails(rows pgx.Rows, err error) ([]model.AppointmentDetail, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// Insert stores a new appointment and fills in its id and timestamps.
func (r *AppointmentRepository) Insert(ctx context.Context, q db.Querier, a *model.Appointment) error {
	err := q.QueryRow(ctx, `
		INSERT INTO citas
			(id_paciente, id_odontologo, id_consultorio, fecha, hora, motivo, estado, reprogramaciones)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id_cita, created_at, updated_at
	`, a.PatientID, a.DentistID, a.RoomID, a.Date, a.Time, a.Reason, string(a.Status), a.Reschedules,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return MapWriteError(err)
}

// GetForUpdate loads an appointment and locks its row until the transaction ends.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, q db.Querier, id int64) (model.Appointment, error) {
	var a model.Appointment
	err := q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM citas c
		WHERE c.id_cita = $1
		FOR UPDATE
	`, id).Scan(appointmentDest(&a)...)
	if err != nil {
		return model.Appointment{}, notFound(err)
	}
	return a, nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id int64) (model.AppointmentDetail, error) {
	return r.Detail(ctx, r.conn, id)
}

// Detail reads an appointment with its directory data through q, so a transaction
// sees its own uncommitted writes.
func (r *AppointmentRepository) Detail(ctx context.Context, q db.Querier, id int64) (model.AppointmentDetail, error) {
	d, err := scanDetail(q.QueryRow(ctx, `
		SELECT `+detailColumns+`
		`+detailFrom+`
		WHERE c.id_cita = $1
	`, id))
	if err != nil {
		return model.AppointmentDetail{}, notFound(err)
	}
	return d, nil
}

// Update writes back every mutable column of a.
func (r *AppointmentRepository) Update(ctx context.Context, q db.Querier, a *model.Appointment) error {
	var source *string
	if a.ConfirmationSource != nil {
		s := string(*a.ConfirmationSource)
		source = &s
	}
	err := q.QueryRow(ctx, `
		UPDATE citas
		SET id_consultorio = $2,
			fecha = $3,
			hora = $4,
			estado = $5,
			reprogramaciones = $6,
			cancelada_en = $7,
			cancelada_por_rol = $8,
			ausentismo = $9,
			reprogramada_en = $10,
			reprogramada_por_rol = $11,
			confirmacion_fuente = $12,
			observacion = $13,
			updated_at = now()
		WHERE id_cita = $1
		RETURNING updated_at
	`, a.ID, a.RoomID, a.Date, a.Time, string(a.Status), a.Reschedules, a.CancelledAt, roleArg(a.CancelledByRole),
		a.NoShow, a.RescheduledAt, roleArg(a.RescheduledByRole), source, a.Observation,
	).Scan(&a.UpdatedAt)
	if err != nil {
		return MapWriteError(notFound(err))
	}
	return nil
}

func roleArg(r *model.Role) *int {
	if r == nil {
		return nil
	}
	v := int(*r)
	return &v
}

// Occupying returns the non cancelled appointments at date and time that share the
// dentist, the room or the patient, except excludeID.
func (r *AppointmentRepository) Occupying(ctx context.Context, q db.Querier, date time.Time, at calendar.Clock, dentistID, roomID, patientID, excludeID int64) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM citas c
		WHERE c.fecha = $1
			AND c.hora = $2
			AND c.estado <> 'cancelada'
			AND (c.id_odontologo = $3 OR c.id_consultorio = $4 OR c.id_paciente = $5)
			AND c.id_cita <> $6
	`, date, at, dentistID, roomID, patientID, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(appointmentDest(&a)...); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// BusyTimes lists the start times held by non cancelled appointments on date for a
// dentist or a room. Exactly one of dentistID and roomID is expected.
func (r *AppointmentRepository) BusyTimes(ctx context.Context, date time.Time, dentistID, roomID *int64) ([]calendar.Clock, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT DISTINCT c.hora
		FROM citas c
		WHERE c.fecha = $1
			AND c.estado <> 'cancelada'
			AND ($2::bigint IS NULL OR c.id_odontologo = $2)
			AND ($3::bigint IS NULL OR c.id_consultorio = $3)
		ORDER BY c.hora
	`, date, dentistID, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.Clock
	for rows.Next() {
		var c calendar.Clock
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// Slots lists every appointment in [from, to] with optional dentist and room filters.
func (r *AppointmentRepository) Slots(ctx context.Context, from, to time.Time, dentistID, roomID *int64) ([]availability.Booking, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT c.fecha, c.hora, c.estado
		FROM citas c
		WHERE c.fecha BETWEEN $1 AND $2
			AND ($3::bigint IS NULL OR c.id_odontologo = $3)
			AND ($4::bigint IS NULL OR c.id_consultorio = $4)
	`, from, to, dentistID, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Booking
	for rows.Next() {
		var s availability.Booking
		if err := rows.Scan(&s.Date, &s.Time, &s.Status); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// PatientLoad counts what the self-service limits look at for a patient booking on
// date with a dentist. excludeID leaves the appointment being moved out of the counts.
func (r *AppointmentRepository) PatientLoad(ctx context.Context, q db.Querier, patientID, dentistID int64, date time.Time, excludeID int64, cooldownSince time.Time) (lifecycle.PatientLoad, error) {
	weekStart, weekEnd := calendar.WeekBounds(date)
	var load lifecycle.PatientLoad
	err := q.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE c.fecha = $3 AND NOT c.estado = ANY($7)),
			count(*) FILTER (WHERE c.fecha BETWEEN $4 AND $5 AND NOT c.estado = ANY($7)),
			count(*) FILTER (WHERE c.estado IN ('pendiente', 'confirmada')),
			count(*) FILTER (WHERE c.id_odontologo = $2 AND c.estado IN ('pendiente', 'confirmada')),
			count(*) FILTER (WHERE c.id_odontologo = $2 AND c.estado = 'cancelada'
				AND c.cancelada_por_rol = 2 AND c.cancelada_en >= $8) > 0
		FROM citas c
		WHERE c.id_paciente = $1 AND c.id_cita <> $6
	`, patientID, dentistID, date, weekStart, weekEnd, excludeID, inactiveStates, cooldownSince,
	).Scan(&load.SameDay, &load.SameWeek, &load.Active, &load.ActiveWithDentist, &load.RecentCancel)
	return load, err
}

// ListFilter narrows List. Zero values mean no filter.
type ListFilter struct {
	DentistID *int64
	RoomID    *int64
	PatientID *int64
	Date      *time.Time
	Status    *model.Status
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// List returns appointments newest first.
func (r *AppointmentRepository) List(ctx context.Context, f ListFilter) ([]model.AppointmentDetail, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.DentistID != nil {
		add("c.id_odontologo = $%d", *f.DentistID)
	}
	if f.RoomID != nil {
		add("c.id_consultorio = $%d", *f.RoomID)
	}
	if f.PatientID != nil {
		add("c.id_paciente = $%d", *f.PatientID)
	}
	if f.Date != nil {
		add("c.fecha = $%d", *f.Date)
	}
	if f.Status != nil {
		add("c.estado = $%d", string(*f.Status))
	}
	if f.From != nil {
		add("c.fecha >= $%d", *f.From)
	}
	if f.To != nil {
		add("c.fecha <= $%d", *f.To)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	sql := `SELECT ` + detailColumns + ` ` + detailFrom
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	sql += fmt.Sprintf(` ORDER BY c.fecha DESC, c.hora DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return collectDetails(r.conn.Query(ctx, sql, args...))
}

// Next returns the earliest appointment of the patient at or after day and time that
// still holds a seat, or nil.
func (r *AppointmentRepository) Next(ctx context.Context, patientID int64, day time.Time, at calendar.Clock) (*model.AppointmentDetail, error) {
	d, err := scanDetail(r.conn.QueryRow(ctx, `
		SELECT `+detailColumns+`
		`+detailFrom+`
		WHERE c.id_paciente = $1
			AND NOT c.estado = ANY($4)
			AND (c.fecha > $2 OR (c.fecha = $2 AND c.hora >= $3))
		ORDER BY c.fecha, c.hora
		LIMIT 1
	`, patientID, day, at, inactiveStates))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// History summarises the completed appointments of a patient.
type History struct {
	Completed       int
	LastVisit       *time.Time
	LastObservation *string
}

func (r *AppointmentRepository) History(ctx context.Context, patientID int64) (History, error) {
	var h History
	err := r.conn.QueryRow(ctx, `
		SELECT count(*) OVER (), c.fecha, c.observacion
		FROM citas c
		WHERE c.id_paciente = $1 AND c.estado = 'realizada'
		ORDER BY c.fecha DESC, c.hora DESC
		LIMIT 1
	`, patientID).Scan(&h.Completed, &h.LastVisit, &h.LastObservation)
	if err != nil {
		if db.IsNotFound(err) {
			return History{}, nil
		}
		return History{}, err
	}
	return h, nil
}
