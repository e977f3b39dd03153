package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

// DateRange restricts a bulk scope to calendar days. Recurring ranges match by month
// and day through MonthDays instead of by date.
type DateRange struct {
	Start     time.Time
	End       time.Time
	Recurring bool
}

// Scope selects the appointments a bulk operation works on. Only future appointments
// relative to FromDate and FromTime are considered.
type Scope struct {
	DentistID *int64
	RoomID    *int64
	Dates     *DateRange
	FromDate  time.Time
	FromTime  calendar.Clock
	Statuses  []model.Status
}

func (s Scope) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v ...any) {
		idx := make([]any, len(v))
		for i := range v {
			args = append(args, v[i])
			idx[i] = len(args)
		}
		conds = append(conds, fmt.Sprintf(cond, idx...))
	}

	statuses := make([]string, 0, len(s.Statuses))
	for _, st := range s.Statuses {
		statuses = append(statuses, string(st))
	}
	add("c.estado = ANY($%d)", statuses)
	add("(c.fecha > $%d OR (c.fecha = $%d AND c.hora >= $%d))", s.FromDate, s.FromDate, s.FromTime)
	if s.DentistID != nil {
		add("c.id_odontologo = $%d", *s.DentistID)
	}
	if s.RoomID != nil {
		add("c.id_consultorio = $%d", *s.RoomID)
	}
	if s.Dates != nil {
		if s.Dates.Recurring {
			add("to_char(c.fecha, 'MM-DD') = ANY($%d)", calendar.MonthDays(s.Dates.Start, s.Dates.End))
		} else {
			add("c.fecha BETWEEN $%d AND $%d", calendar.Day(s.Dates.Start), calendar.Day(s.Dates.End))
		}
	}
	return strings.Join(conds, " AND "), args
}

// SelectScope lists the appointments in scope in agenda order. With lock the rows stay
// locked until the transaction ends.
func (r *AppointmentRepository) SelectScope(ctx context.Context, q db.Querier, s Scope, lock bool) ([]model.AppointmentDetail, error) {
	where, args := s.where()
	sql := `SELECT ` + detailColumns + ` ` + detailFrom + ` WHERE ` + where + ` ORDER BY c.fecha, c.hora, c.id_cita`
	if lock {
		sql += ` FOR UPDATE OF c`
	}
	return collectDetails(q.Query(ctx, sql, args...))
}

// MarkMaintenance moves the given appointments to maintenance in one statement and
// tags them with batchID.
func (r *AppointmentRepository) MarkMaintenance(ctx context.Context, q db.Querier, ids []int64, batchID uuid.UUID, by model.Role, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := q.Exec(ctx, `
		UPDATE citas
		SET estado = 'mantenimiento',
			reprogramada_en = $2,
			reprogramada_por_rol = $3,
			batch_id = $4,
			updated_at = now()
		WHERE id_cita = ANY($1)
	`, ids, now, int(by), batchID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkPending returns maintenance appointments to pending.
func (r *AppointmentRepository) MarkPending(ctx context.Context, q db.Querier, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := q.Exec(ctx, `
		UPDATE citas
		SET estado = 'pendiente',
			updated_at = now()
		WHERE id_cita = ANY($1) AND estado = 'mantenimiento'
	`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DueUnconfirmed locks pending appointments starting no later than until. Start
// instants are computed in the clinic time zone tz. Locked rows are skipped so
// concurrent sweeps never process the same appointment.
func (r *AppointmentRepository) DueUnconfirmed(ctx context.Context, q db.Querier, tz string, until time.Time, limit int) ([]model.AppointmentDetail, error) {
	return collectDetails(q.Query(ctx, `
		SELECT `+detailColumns+`
		`+detailFrom+`
		WHERE c.estado = 'pendiente'
			AND (c.fecha + c.hora) AT TIME ZONE $1 <= $2
		ORDER BY c.fecha, c.hora
		LIMIT $3
		FOR UPDATE OF c SKIP LOCKED
	`, tz, until, limit))
}

// DueReminders locks pending appointments starting within [from, to] that have not
// been reminded yet.
func (r *AppointmentRepository) DueReminders(ctx context.Context, q db.Querier, tz string, from, to time.Time, limit int) ([]model.AppointmentDetail, error) {
	return collectDetails(q.Query(ctx, `
		SELECT `+detailColumns+`
		`+detailFrom+`
		WHERE c.estado = 'pendiente'
			AND c.recordatorio_enviado_at IS NULL
			AND (c.fecha + c.hora) AT TIME ZONE $1 BETWEEN $2 AND $3
		ORDER BY c.fecha, c.hora
		LIMIT $4
		FOR UPDATE OF c SKIP LOCKED
	`, tz, from, to, limit))
}

func (r *AppointmentRepository) MarkReminded(ctx context.Context, q db.Querier, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		UPDATE citas
		SET recordatorio_enviado_at = $2,
			updated_at = now()
		WHERE id_cita = ANY($1)
	`, ids, at)
	return err
}
