package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

type ScheduleRepository struct {
	conn db.Conn
}

func NewScheduleRepository(conn db.Conn) *ScheduleRepository {
	return &ScheduleRepository{conn: conn}
}

func (r *ScheduleRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.conn.Begin(ctx)
}

const windowColumns = `id_horario, id_odontologo, dia_semana, hora_inicio, hora_fin, vigente`

func scanWindows(rows pgx.Rows, err error) ([]model.Window, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Window
	for rows.Next() {
		var w model.Window
		if err := rows.Scan(&w.ID, &w.DentistID, &w.Weekday, &w.Start, &w.End, &w.Active); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// Windows lists every window of a dentist, active or not.
func (r *ScheduleRepository) Windows(ctx context.Context, q db.Querier, dentistID int64) ([]model.Window, error) {
	return scanWindows(q.Query(ctx, `
		SELECT `+windowColumns+`
		FROM odontologo_horarios
		WHERE id_odontologo = $1
		ORDER BY dia_semana, hora_inicio
	`, dentistID))
}

func (r *ScheduleRepository) Window(ctx context.Context, q db.Querier, id int64) (model.Window, error) {
	var w model.Window
	err := q.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM odontologo_horarios
		WHERE id_horario = $1
	`, id).Scan(&w.ID, &w.DentistID, &w.Weekday, &w.Start, &w.End, &w.Active)
	if err != nil {
		return model.Window{}, notFound(err)
	}
	return w, nil
}

func (r *ScheduleRepository) InsertWindow(ctx context.Context, q db.Querier, w *model.Window) error {
	err := q.QueryRow(ctx, `
		INSERT INTO odontologo_horarios (id_odontologo, dia_semana, hora_inicio, hora_fin, vigente)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id_horario
	`, w.DentistID, w.Weekday, w.Start, w.End, w.Active).Scan(&w.ID)
	return MapWriteError(err)
}

func (r *ScheduleRepository) UpdateWindow(ctx context.Context, q db.Querier, w model.Window) error {
	tag, err := q.Exec(ctx, `
		UPDATE odontologo_horarios
		SET dia_semana = $2,
			hora_inicio = $3,
			hora_fin = $4,
			vigente = $5
		WHERE id_horario = $1
	`, w.ID, w.Weekday, w.Start, w.End, w.Active)
	if err != nil {
		return MapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const blockColumns = `b.id_bloqueo, b.grupo, b.id_odontologo, b.fecha, b.recurrente_anual, b.motivo`

func scanBlocks(rows pgx.Rows, err error) ([]model.Block, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Block
	for rows.Next() {
		var b model.Block
		if err := rows.Scan(&b.ID, &b.Group, &b.DentistID, &b.Date, &b.Recurring, &b.Reason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// BlocksInRange returns the block rows that can affect any day of [from, to] for the
// dentist: global rows always, dentist rows when dentistID is set. Recurring rows are
// matched by month and day.
func (r *ScheduleRepository) BlocksInRange(ctx context.Context, q db.Querier, from, to time.Time, dentistID *int64) ([]model.Block, error) {
	return scanBlocks(q.Query(ctx, `
		SELECT `+blockColumns+`
		FROM bloqueos_dia b
		WHERE (b.id_odontologo IS NULL OR b.id_odontologo = $3)
			AND (
				(NOT b.recurrente_anual AND b.fecha BETWEEN $1 AND $2)
				OR (b.recurrente_anual AND to_char(b.fecha, 'MM-DD') = ANY($4))
			)
		ORDER BY b.fecha
	`, calendar.Day(from), calendar.Day(to), dentistID, calendar.MonthDays(from, to)))
}

// BlocksOfScope returns every row of one scope: global when dentistID is nil.
func (r *ScheduleRepository) BlocksOfScope(ctx context.Context, q db.Querier, dentistID *int64) ([]model.Block, error) {
	return scanBlocks(q.Query(ctx, `
		SELECT `+blockColumns+`
		FROM bloqueos_dia b
		WHERE b.id_odontologo IS NOT DISTINCT FROM $1
		ORDER BY b.fecha
	`, dentistID))
}

// Group returns the group with the given id, or ErrNotFound.
func (r *ScheduleRepository) Group(ctx context.Context, q db.Querier, id uuid.UUID) (model.BlockGroup, error) {
	var g model.BlockGroup
	err := q.QueryRow(ctx, `
		SELECT b.grupo, min(b.fecha), max(b.fecha), min(b.motivo), bool_or(b.recurrente_anual),
			min(b.id_odontologo), min(o.nombre)
		FROM bloqueos_dia b
		LEFT JOIN odontologos o ON o.id_odontologo = b.id_odontologo
		WHERE b.grupo = $1
		GROUP BY b.grupo
	`, id).Scan(&g.ID, &g.Start, &g.End, &g.Reason, &g.Recurring, &g.DentistID, &g.DentistName)
	if err != nil {
		return model.BlockGroup{}, notFound(err)
	}
	return g, nil
}

// GroupFilter narrows Groups. Leaving Global false and DentistID nil lists every scope.
type GroupFilter struct {
	Global    bool
	DentistID *int64
	Start     *time.Time
	End       *time.Time
}

// Groups lists block groups ordered by start. A date window keeps groups with a dated
// row inside it or a recurring row whose month-day falls inside it.
func (r *ScheduleRepository) Groups(ctx context.Context, f GroupFilter) ([]model.BlockGroup, error) {
	var (
		conds []string
		args  []any
	)
	switch {
	case f.Global:
		conds = append(conds, "b.id_odontologo IS NULL")
	case f.DentistID != nil:
		args = append(args, *f.DentistID)
		conds = append(conds, fmt.Sprintf("b.id_odontologo = $%d", len(args)))
	}
	if f.Start != nil || f.End != nil {
		from, to := windowBounds(f.Start, f.End)
		args = append(args, from, to, calendar.MonthDays(from, to))
		n := len(args)
		conds = append(conds, fmt.Sprintf(`b.grupo IN (
			SELECT grupo FROM bloqueos_dia
			WHERE (NOT recurrente_anual AND fecha BETWEEN $%d AND $%d)
				OR (recurrente_anual AND to_char(fecha, 'MM-DD') = ANY($%d))
		)`, n-2, n-1, n))
	}

	sql := `
		SELECT b.grupo, min(b.fecha), max(b.fecha), min(b.motivo), bool_or(b.recurrente_anual),
			min(b.id_odontologo), min(o.nombre)
		FROM bloqueos_dia b
		LEFT JOIN odontologos o ON o.id_odontologo = b.id_odontologo`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, " AND ")
	}
	sql += ` GROUP BY b.grupo ORDER BY min(b.fecha)`

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlockGroup
	for rows.Next() {
		var g model.BlockGroup
		if err := rows.Scan(&g.ID, &g.Start, &g.End, &g.Reason, &g.Recurring, &g.DentistID, &g.DentistName); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// windowBounds fills an open side of a list window with the other side's year edge.
func windowBounds(start, end *time.Time) (time.Time, time.Time) {
	switch {
	case start != nil && end != nil:
		return calendar.Day(*start), calendar.Day(*end)
	case start != nil:
		s := calendar.Day(*start)
		return s, time.Date(s.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	default:
		e := calendar.Day(*end)
		return time.Date(e.Year(), 1, 1, 0, 0, 0, 0, time.UTC), e
	}
}

// InsertGroup writes one row per day of g, all sharing g.ID.
func (r *ScheduleRepository) InsertGroup(ctx context.Context, q db.Querier, g model.BlockGroup) error {
	days := calendar.Days(g.Start, g.End)
	_, err := q.Exec(ctx, `
		INSERT INTO bloqueos_dia (grupo, id_odontologo, fecha, recurrente_anual, motivo)
		SELECT $1, $2, d, $3, $4
		FROM unnest($5::date[]) AS d
	`, g.ID, g.DentistID, g.Recurring, g.Reason, days)
	return MapWriteError(err)
}

// DeleteGroup removes every row of a group and reports how many there were.
func (r *ScheduleRepository) DeleteGroup(ctx context.Context, q db.Querier, id uuid.UUID) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM bloqueos_dia WHERE grupo = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// LockGroup takes the row locks of a group so concurrent edits of it serialise.
func (r *ScheduleRepository) LockGroup(ctx context.Context, q db.Querier, id uuid.UUID) error {
	_, err := q.Exec(ctx, `SELECT 1 FROM bloqueos_dia WHERE grupo = $1 FOR UPDATE`, id)
	return err
}
