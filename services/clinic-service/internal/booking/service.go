// Package booking runs the appointment use cases: every operation loads the policy
// once, takes the row locks it needs, writes the change together with its outbox
// event and commits.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/metrics"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/outbox"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
	"github.com/oralflow/oralflow/services/clinic-service/internal/storage"
)

type Service struct {
	conn     db.Conn
	appts    *storage.AppointmentRepository
	dir      *storage.DirectoryRepository
	sched    *storage.ScheduleRepository
	settings *storage.PolicyRepository
	outbox   *outbox.Repository
	policy   policy.Provider
	metrics  *metrics.Metrics
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

type Config struct {
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
}

func New(conn db.Conn, provider policy.Provider, outboxRepo *outbox.Repository, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		conn:     conn,
		appts:    storage.NewAppointmentRepository(conn),
		dir:      storage.NewDirectoryRepository(conn),
		sched:    storage.NewScheduleRepository(conn),
		settings: storage.NewPolicyRepository(conn),
		outbox:   outboxRepo,
		policy:   provider,
		metrics:  m,
		logger:   logger,
		loc:      cfg.Location,
		now:      cfg.Now,
	}
}

// Location is the clinic time zone the service interprets dates in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// inTx runs fn in a transaction and commits when it returns nil.
func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.InTx(ctx, s.conn, fn)
}

func (s *Service) emit(ctx context.Context, q db.Querier, id int64, eventType string, payload any) error {
	evt, err := outbox.AppointmentEvent(id, eventType, payload)
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, q, evt)
}

// record counts a finished operation or its domain rejection.
func (s *Service) record(operation string, state model.Status, err error) {
	if err == nil {
		s.metrics.Transition(operation, string(state))
		return
	}
	if e, ok := apperr.As(err); ok {
		s.metrics.Rejected(operation, e.Kind.String())
	}
}

func missing(err error, detail string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(detail)
	}
	return err
}

// unknownRef reports a missing referenced row as a field error.
func unknownRef(err error, field string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Validation(field, "No existe.")
	}
	return err
}

const msgAppointmentNotFound = "Cita no encontrada."
