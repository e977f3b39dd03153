// Package sweep runs the periodic clean-ups of the agenda: cancelling appointments
// that were never confirmed in time and queueing reminders for the upcoming ones.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/internal/lifecycle"
	"github.com/oralflow/oralflow/services/clinic-service/internal/metrics"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/outbox"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
	"github.com/oralflow/oralflow/services/clinic-service/internal/storage"
)

// ReasonAutoCancelled is the cancellation reason carried by sweep cancellations.
const ReasonAutoCancelled = "autocancelada"

type Sweeper struct {
	conn      db.Conn
	appts     *storage.AppointmentRepository
	outbox    *outbox.Repository
	policy    policy.Provider
	metrics   *metrics.Metrics
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
	lead      time.Duration
	batchSize int
}

type Config struct {
	Location *time.Location
	// ReminderLead is how long before the start a reminder is due.
	ReminderLead time.Duration
	BatchSize    int
	Now          func() time.Time
}

func New(conn db.Conn, provider policy.Provider, outboxRepo *outbox.Repository, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Sweeper {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ReminderLead <= 0 {
		cfg.ReminderLead = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sweeper{
		conn:      conn,
		appts:     storage.NewAppointmentRepository(conn),
		outbox:    outboxRepo,
		policy:    provider,
		metrics:   m,
		logger:    logger,
		loc:       cfg.Location,
		now:       cfg.Now,
		lead:      cfg.ReminderLead,
		batchSize: cfg.BatchSize,
	}
}

// Result reports what a sweep did, or would do on a dry run.
type Result struct {
	DryRun bool    `json:"dry_run"`
	Total  int     `json:"total"`
	IDs    []int64 `json:"ids"`
}

// AutoCancel cancels pending appointments that start within the policy's confirmation
// deadline. The cancellation is attributed to the patient, so it starts the rebooking
// cooldown. With dryRun nothing is written.
func (s *Sweeper) AutoCancel(ctx context.Context, dryRun bool) (Result, error) {
	p, err := s.policy.Current(ctx)
	if err != nil {
		return Result{}, err
	}
	now := s.now()
	until := now.Add(time.Duration(p.ConfirmUntilHours) * time.Hour)

	res := Result{DryRun: dryRun, IDs: []int64{}}
	err = db.InTx(ctx, s.conn, func(tx pgx.Tx) error {
		due, err := s.appts.DueUnconfirmed(ctx, tx, s.loc.String(), until, s.batchSize)
		if err != nil {
			return err
		}
		if dryRun {
			res.IDs = lo.Map(due, func(d model.AppointmentDetail, _ int) int64 { return d.ID })
			return nil
		}
		for _, d := range due {
			actor := model.SystemActor()
			actor.PatientID = d.PatientID
			changed, err := lifecycle.Cancel(&d.Appointment, actor, false, now)
			if err != nil {
				s.logger.Warn("autocancel skipped", "id_cita", d.ID, "err", err)
				continue
			}
			if !changed {
				continue
			}
			if err := s.appts.Update(ctx, tx, &d.Appointment); err != nil {
				return err
			}
			payload := outbox.NewAppointmentPayload(d)
			payload.Reason = ReasonAutoCancelled
			evt, err := outbox.AppointmentEvent(d.ID, outbox.TypeAppointmentCancelled, payload)
			if err != nil {
				return err
			}
			if err := s.outbox.Insert(ctx, tx, evt); err != nil {
				return err
			}
			res.IDs = append(res.IDs, d.ID)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	res.Total = len(res.IDs)
	if !dryRun {
		s.metrics.Swept("autocancel", res.Total)
	}
	if res.Total > 0 {
		s.logger.Info("autocancel sweep", "total", res.Total, "dry_run", dryRun)
	}
	return res, nil
}

// Reminders queues a reminder event for every pending appointment starting within an
// hour of the reminder lead and stamps it so it is reminded once.
func (s *Sweeper) Reminders(ctx context.Context) (Result, error) {
	now := s.now()
	from, to := now.Add(s.lead-time.Hour), now.Add(s.lead+time.Hour)

	res := Result{IDs: []int64{}}
	err := db.InTx(ctx, s.conn, func(tx pgx.Tx) error {
		due, err := s.appts.DueReminders(ctx, tx, s.loc.String(), from, to, s.batchSize)
		if err != nil {
			return err
		}
		for _, d := range due {
			evt, err := outbox.AppointmentEvent(d.ID, outbox.TypeReminderDue, outbox.NewAppointmentPayload(d))
			if err != nil {
				return err
			}
			if err := s.outbox.Insert(ctx, tx, evt); err != nil {
				return err
			}
			res.IDs = append(res.IDs, d.ID)
		}
		return s.appts.MarkReminded(ctx, tx, res.IDs, now)
	})
	if err != nil {
		return Result{}, err
	}
	res.Total = len(res.IDs)
	s.metrics.Swept("reminders", res.Total)
	if res.Total > 0 {
		s.logger.Info("reminder sweep", "total", res.Total)
	}
	return res, nil
}

// Worker runs both sweeps on a fixed interval until its context ends.
type Worker struct {
	sweeper  *Sweeper
	logger   *slog.Logger
	interval time.Duration
}

func NewWorker(s *Sweeper, logger *slog.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{sweeper: s, logger: logger, interval: interval}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	if _, err := w.sweeper.AutoCancel(ctx, false); err != nil {
		w.logger.Error("autocancel sweep failed", "err", err)
	}
	if _, err := w.sweeper.Reminders(ctx); err != nil {
		w.logger.Error("reminder sweep failed", "err", err)
	}
}
