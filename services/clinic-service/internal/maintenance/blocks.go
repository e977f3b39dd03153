package maintenance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/schedule"
	"github.com/oralflow/oralflow/services/clinic-service/internal/storage"
)

const (
	msgGroupNotFound = "No encontrado."
	msgGroupOverlap  = "Ya existe un bloqueo que intersecta ese rango (incluye recurrentes)."
)

// GroupInput describes a block group to create or to preview before creating it.
type GroupInput struct {
	Start     time.Time
	End       time.Time
	Reason    string
	Recurring bool
	DentistID *int64
}

// GroupPatch carries the editable fields of a group. The scope of a group is fixed
// once created.
type GroupPatch struct {
	Start     *time.Time
	End       *time.Time
	Reason    *string
	Recurring *bool
}

// CreateApplied is the outcome of create-and-apply. Apply is nil when nothing was
// applied.
type CreateApplied struct {
	Group   model.BlockGroup
	Preview Preview
	Apply   *Applied
}

func (in GroupInput) group() model.BlockGroup {
	return model.BlockGroup{
		Start:     calendar.Day(in.Start),
		End:       calendar.Day(in.End),
		Reason:    strings.TrimSpace(in.Reason),
		Recurring: in.Recurring,
		DentistID: in.DentistID,
	}
}

// canManage lets admins manage every scope and dentists their own blocks.
func canManage(actor model.Actor, dentistID *int64) error {
	if actor.Role.IsAdmin() {
		return nil
	}
	if dentistID == nil {
		return apperr.Forbidden("Solo un administrador puede gestionar bloqueos globales.")
	}
	if actor.Role == model.RoleDentist && actor.DentistID != 0 && actor.DentistID == *dentistID {
		return nil
	}
	return apperr.Forbidden("No puedes gestionar bloqueos de otro odontólogo.")
}

func blockTarget(id uuid.UUID) target { return target{scope: scopeBlock, id: id.String()} }

func (s *Service) groupScope(g model.BlockGroup, statuses []model.Status) storage.Scope {
	sc := s.scope(nil, statuses)
	sc.DentistID = g.DentistID
	sc.Dates = &storage.DateRange{Start: g.Start, End: g.End, Recurring: g.Recurring}
	return sc
}

// Groups lists block groups. Patients only see global groups and dentists see global
// groups plus their own.
func (s *Service) Groups(ctx context.Context, actor model.Actor, f storage.GroupFilter) ([]model.BlockGroup, error) {
	if actor.Role.IsPatient() {
		f.Global, f.DentistID = true, nil
	}
	groups, err := s.sched.Groups(ctx, f)
	if err != nil {
		return nil, err
	}
	if actor.Role == model.RoleDentist {
		groups = lo.Filter(groups, func(g model.BlockGroup, _ int) bool {
			return g.DentistID == nil || *g.DentistID == actor.DentistID
		})
	}
	if groups == nil {
		groups = []model.BlockGroup{}
	}
	return groups, nil
}

func (s *Service) CreateGroup(ctx context.Context, actor model.Actor, in GroupInput) (model.BlockGroup, error) {
	var out model.BlockGroup
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = s.createIn(ctx, tx, actor, in)
		return err
	})
	if err != nil {
		return model.BlockGroup{}, err
	}
	s.logger.Info("block group created", "grupo", out.ID.String(), "fecha_inicio", calendar.FormatDate(out.Start), "fecha_fin", calendar.FormatDate(out.End))
	return out, nil
}

func (s *Service) createIn(ctx context.Context, tx pgx.Tx, actor model.Actor, in GroupInput) (model.BlockGroup, error) {
	g := in.group()
	if err := schedule.ValidateGroup(g); err != nil {
		return model.BlockGroup{}, err
	}
	if err := canManage(actor, g.DentistID); err != nil {
		return model.BlockGroup{}, err
	}
	if g.DentistID != nil {
		d, err := s.dir.LockDentist(ctx, tx, *g.DentistID)
		if errors.Is(err, storage.ErrNotFound) {
			return model.BlockGroup{}, apperr.Validation("id_odontologo", "Odontólogo inválido.")
		}
		if err != nil {
			return model.BlockGroup{}, err
		}
		g.DentistName = &d.Name
	}
	g.ID = uuid.New()
	if err := s.checkOverlap(ctx, tx, g); err != nil {
		return model.BlockGroup{}, err
	}
	if err := s.sched.InsertGroup(ctx, tx, g); err != nil {
		return model.BlockGroup{}, err
	}
	return g, nil
}

func (s *Service) checkOverlap(ctx context.Context, tx pgx.Tx, g model.BlockGroup) error {
	existing, err := s.sched.BlocksOfScope(ctx, tx, g.DentistID)
	if err != nil {
		return err
	}
	if schedule.GroupIntersects(g, existing) {
		return apperr.Invalid(msgGroupOverlap)
	}
	return nil
}

// lockGroup locks a group's rows and loads it. A group outside the actor's reach is
// reported as forbidden.
func (s *Service) lockGroup(ctx context.Context, tx pgx.Tx, actor model.Actor, id uuid.UUID) (model.BlockGroup, error) {
	if err := s.sched.LockGroup(ctx, tx, id); err != nil {
		return model.BlockGroup{}, err
	}
	g, err := s.sched.Group(ctx, tx, id)
	if err != nil {
		return model.BlockGroup{}, missing(err, msgGroupNotFound)
	}
	if err := canManage(actor, g.DentistID); err != nil {
		return model.BlockGroup{}, err
	}
	return g, nil
}

// UpdateGroup regenerates the rows of a group from the patched range. The group's own
// rows are ignored by the overlap check.
func (s *Service) UpdateGroup(ctx context.Context, actor model.Actor, id uuid.UUID, patch GroupPatch) (model.BlockGroup, error) {
	var out model.BlockGroup
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		g, err := s.lockGroup(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if patch.Start != nil {
			g.Start = calendar.Day(*patch.Start)
		}
		if patch.End != nil {
			g.End = calendar.Day(*patch.End)
		}
		if patch.Reason != nil {
			g.Reason = strings.TrimSpace(*patch.Reason)
		}
		if patch.Recurring != nil {
			g.Recurring = *patch.Recurring
		}
		if err := schedule.ValidateGroup(g); err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, tx, g); err != nil {
			return err
		}
		if _, err := s.sched.DeleteGroup(ctx, tx, id); err != nil {
			return err
		}
		if err := s.sched.InsertGroup(ctx, tx, g); err != nil {
			return err
		}
		out = g
		return nil
	})
	if err != nil {
		return model.BlockGroup{}, err
	}
	s.logger.Info("block group updated", "grupo", id.String())
	return out, nil
}

// DeleteGroup returns the group's maintenance appointments to pending and removes its
// rows. Deleting an unknown group is a no-op.
func (s *Service) DeleteGroup(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	t := blockTarget(id)
	var n int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		g, err := s.lockGroup(ctx, tx, actor, id)
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		r, err := s.reactivateIn(ctx, tx, s.groupScope(g, maintenanceStatuses), t)
		if err != nil {
			return err
		}
		n = r.Total
		_, err = s.sched.DeleteGroup(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}
	s.logApplied("reactivar", t, n, nil)
	return nil
}

// PreviewDraft previews an unsaved group.
func (s *Service) PreviewDraft(ctx context.Context, actor model.Actor, in GroupInput) (Preview, error) {
	g := in.group()
	if err := schedule.ValidateGroup(g); err != nil {
		return Preview{}, err
	}
	if err := canManage(actor, g.DentistID); err != nil {
		return Preview{}, err
	}
	return s.preview(ctx, s.groupScope(g, activeStatuses))
}

// CreateAndApply creates a group and, when confirm is set and something is affected,
// moves the affected appointments to maintenance in the same transaction.
func (s *Service) CreateAndApply(ctx context.Context, actor model.Actor, in GroupInput, confirm bool) (CreateApplied, error) {
	var out CreateApplied
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		g, err := s.createIn(ctx, tx, actor, in)
		if err != nil {
			return err
		}
		out.Group = g
		sc := s.groupScope(g, activeStatuses)
		details, err := s.appts.SelectScope(ctx, tx, sc, false)
		if err != nil {
			return err
		}
		out.Preview = newPreview(details)
		if !confirm || out.Preview.Total == 0 {
			return nil
		}
		applied, err := s.applyIn(ctx, tx, actor, sc, blockTarget(g.ID))
		if err != nil {
			return err
		}
		out.Apply = &applied
		return nil
	})
	if err != nil {
		return CreateApplied{}, err
	}
	if out.Apply != nil {
		s.logApplied("mantenimiento", blockTarget(out.Group.ID), out.Apply.Total, &out.Apply.BatchID)
	}
	return out, nil
}

func (s *Service) group(ctx context.Context, actor model.Actor, id uuid.UUID) (model.BlockGroup, error) {
	g, err := s.sched.Group(ctx, s.conn, id)
	if err != nil {
		return model.BlockGroup{}, missing(err, msgGroupNotFound)
	}
	if err := canManage(actor, g.DentistID); err != nil {
		return model.BlockGroup{}, err
	}
	return g, nil
}

// PreviewGroup lists the future active appointments a saved group would put into
// maintenance.
func (s *Service) PreviewGroup(ctx context.Context, actor model.Actor, id uuid.UUID) (Preview, error) {
	g, err := s.group(ctx, actor, id)
	if err != nil {
		return Preview{}, err
	}
	return s.preview(ctx, s.groupScope(g, activeStatuses))
}

// PreviewGroupReactivation lists the future maintenance appointments a reactivation
// of the group would return to pending.
func (s *Service) PreviewGroupReactivation(ctx context.Context, actor model.Actor, id uuid.UUID) (Preview, error) {
	g, err := s.group(ctx, actor, id)
	if err != nil {
		return Preview{}, err
	}
	return s.preview(ctx, s.groupScope(g, maintenanceStatuses))
}

func (s *Service) ApplyGroup(ctx context.Context, actor model.Actor, id uuid.UUID, confirm bool) (Applied, error) {
	if err := requireAdmin(actor); err != nil {
		return Applied{}, err
	}
	if err := requireConfirm(confirm); err != nil {
		return Applied{}, err
	}
	t := blockTarget(id)
	var out Applied
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		g, err := s.lockGroup(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		out, err = s.applyIn(ctx, tx, actor, s.groupScope(g, activeStatuses), t)
		return err
	})
	if err != nil {
		return Applied{}, err
	}
	s.logApplied("mantenimiento", t, out.Total, &out.BatchID)
	return out, nil
}

func (s *Service) ReactivateGroup(ctx context.Context, actor model.Actor, id uuid.UUID) (Reactivated, error) {
	if err := requireAdmin(actor); err != nil {
		return Reactivated{}, err
	}
	t := blockTarget(id)
	var out Reactivated
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		g, err := s.lockGroup(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		out, err = s.reactivateIn(ctx, tx, s.groupScope(g, maintenanceStatuses), t)
		return err
	})
	if err != nil {
		return Reactivated{}, err
	}
	s.logApplied("reactivar", t, out.Total, nil)
	return out, nil
}
