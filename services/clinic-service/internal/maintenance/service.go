// Package maintenance moves future appointments in and out of the mantenimiento state
// in bulk, when a dentist or room is taken out of service or a range of days is
// blocked, and manages the block groups that drive the latter.
package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/metrics"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/outbox"
	"github.com/oralflow/oralflow/services/clinic-service/internal/storage"
)

type Service struct {
	conn    db.Conn
	appts   *storage.AppointmentRepository
	dir     *storage.DirectoryRepository
	sched   *storage.ScheduleRepository
	outbox  *outbox.Repository
	metrics *metrics.Metrics
	logger  *slog.Logger
	loc     *time.Location
	now     func() time.Time
}

type Config struct {
	Location *time.Location
	Now      func() time.Time
}

func New(conn db.Conn, outboxRepo *outbox.Repository, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		conn:    conn,
		appts:   storage.NewAppointmentRepository(conn),
		dir:     storage.NewDirectoryRepository(conn),
		sched:   storage.NewScheduleRepository(conn),
		outbox:  outboxRepo,
		metrics: m,
		logger:  logger,
		loc:     cfg.Location,
		now:     cfg.Now,
	}
}

// Item is one affected appointment as shown in previews and apply results.
type Item struct {
	ID           int64          `json:"id_cita"`
	Date         string         `json:"fecha"`
	Time         calendar.Clock `json:"hora"`
	Status       model.Status   `json:"estado"`
	PatientID    int64          `json:"id_paciente"`
	PatientName  string         `json:"paciente_nombre"`
	PatientPhone string         `json:"paciente_celular"`
	DentistID    int64          `json:"id_odontologo"`
	DentistName  string         `json:"odontologo_nombre"`
	RoomID       int64          `json:"id_consultorio"`
	RoomNumber   string         `json:"consultorio_numero"`
}

func newItem(d model.AppointmentDetail) Item {
	name := d.PatientName
	if name == "" {
		name = "—"
	}
	return Item{
		ID:           d.ID,
		Date:         calendar.FormatDate(d.Date),
		Time:         d.Time,
		Status:       d.Status,
		PatientID:    d.PatientID,
		PatientName:  name,
		PatientPhone: d.PatientPhone,
		DentistID:    d.DentistID,
		DentistName:  d.DentistName,
		RoomID:       d.RoomID,
		RoomNumber:   d.RoomNumber,
	}
}

func newItems(details []model.AppointmentDetail) []Item {
	return lo.Map(details, func(d model.AppointmentDetail, _ int) Item { return newItem(d) })
}

// Preview lists what an apply would touch without changing anything.
type Preview struct {
	Total    int            `json:"total_afectadas"`
	ByStatus map[string]int `json:"por_estado"`
	Items    []Item         `json:"items"`
}

func newPreview(details []model.AppointmentDetail) Preview {
	by := lo.CountValuesBy(details, func(d model.AppointmentDetail) string { return string(d.Status) })
	return Preview{Total: len(details), ByStatus: by, Items: newItems(details)}
}

// Applied is the outcome of moving a selection to maintenance.
type Applied struct {
	BatchID uuid.UUID `json:"batch_id"`
	Total   int64     `json:"total_mantenimiento"`
	Items   []Item    `json:"items"`
}

// Reactivated is the outcome of returning a selection to pending.
type Reactivated struct {
	Total int64  `json:"total_pendientes"`
	Items []Item `json:"items"`
}

// BatchPayload is the body of the citas.bulk.* events. Notifications fan it out to
// the affected patients.
type BatchPayload struct {
	BatchID      uuid.UUID                   `json:"batch_id"`
	Scope        string                      `json:"alcance"`
	ScopeID      string                      `json:"alcance_id,omitempty"`
	Total        int64                       `json:"total"`
	Appointments []outbox.AppointmentPayload `json:"citas"`
}

var (
	activeStatuses      = []model.Status{model.StatusPending, model.StatusConfirmed}
	maintenanceStatuses = []model.Status{model.StatusMaintenance}
)

const (
	scopeDentist = "odontologo"
	scopeRoom    = "consultorio"
	scopeBlock   = "bloqueo"

	msgNoPermission = "No tienes permisos para esta acción."
)

// start resolves the effective instant of a bulk operation. A nil from means now.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) start(from *time.Time) (time.Time, calendar.Clock) {
	t := s.now()
	if from != nil {
		t = *from
	}
	return calendar.Split(t, s.loc)
}

func (s *Service) scope(from *time.Time, statuses []model.Status) storage.Scope {
	day, at := s.start(from)
	return storage.Scope{FromDate: day, FromTime: at, Statuses: statuses}
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.InTx(ctx, s.conn, fn)
}

func requireAdmin(actor model.Actor) error {
	if !actor.Role.IsAdmin() {
		return apperr.Forbidden(msgNoPermission)
	}
	return nil
}

func requireConfirm(confirm bool) error {
	if !confirm {
		return apperr.Validation("confirm", "Falta confirm")
	}
	return nil
}

func (s *Service) preview(ctx context.Context, sc storage.Scope) (Preview, error) {
	details, err := s.appts.SelectScope(ctx, s.conn, sc, false)
	if err != nil {
		return Preview{}, err
	}
	return newPreview(details), nil
}

// target names the scope an apply works on, for events, metrics and logs.
type target struct {
	scope string
	id    string
}

// applyIn locks the selection and moves it to maintenance under a fresh batch id. An
// empty selection still gets a batch id.
func (s *Service) applyIn(ctx context.Context, tx pgx.Tx, actor model.Actor, sc storage.Scope, t target) (Applied, error) {
	sc.Statuses = activeStatuses
	details, err := s.appts.SelectScope(ctx, tx, sc, true)
	if err != nil {
		return Applied{}, err
	}
	batch := uuid.New()
	ids := lo.Map(details, func(d model.AppointmentDetail, _ int) int64 { return d.ID })
	n, err := s.appts.MarkMaintenance(ctx, tx, ids, batch, actor.Role, s.now())
	if err != nil {
		return Applied{}, err
	}
	if err := s.emit(ctx, tx, outbox.TypeBulkMaintenance, batch, t, n, details); err != nil {
		return Applied{}, err
	}
	return Applied{BatchID: batch, Total: n, Items: newItems(details)}, nil
}

// reactivateIn returns the maintenance rows of the selection to pending.
func (s *Service) reactivateIn(ctx context.Context, tx pgx.Tx, sc storage.Scope, t target) (Reactivated, error) {
	sc.Statuses = maintenanceStatuses
	details, err := s.appts.SelectScope(ctx, tx, sc, true)
	if err != nil {
		return Reactivated{}, err
	}
	ids := lo.Map(details, func(d model.AppointmentDetail, _ int) int64 { return d.ID })
	n, err := s.appts.MarkPending(ctx, tx, ids)
	if err != nil {
		return Reactivated{}, err
	}
	if n > 0 {
		if err := s.emit(ctx, tx, outbox.TypeBulkReactivated, uuid.New(), t, n, details); err != nil {
			return Reactivated{}, err
		}
	}
	return Reactivated{Total: n, Items: newItems(details)}, nil
}

func (s *Service) emit(ctx context.Context, q db.Querier, eventType string, batch uuid.UUID, t target, n int64, details []model.AppointmentDetail) error {
	evt, err := outbox.NewEvent(outbox.AggregateBatch, batch.String(), eventType, BatchPayload{
		BatchID:      batch,
		Scope:        t.scope,
		ScopeID:      t.id,
		Total:        n,
		Appointments: lo.Map(details, func(d model.AppointmentDetail, _ int) outbox.AppointmentPayload { return outbox.NewAppointmentPayload(d) }),
	})
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, q, evt)
}

func (s *Service) logApplied(action string, t target, n int64, batch *uuid.UUID) {
	s.metrics.Bulk(t.scope, action, int(n))
	attrs := []any{"alcance", t.scope, "alcance_id", t.id, "total", n}
	if batch != nil {
		attrs = append(attrs, "batch_id", batch.String())
	}
	s.logger.Info("bulk "+action, attrs...)
}

func missing(err error, detail string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(detail)
	}
	return err
}
