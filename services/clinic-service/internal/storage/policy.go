package storage

import (
	"context"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
)

// PolicyRepository persists the singleton configuracion row.
type PolicyRepository struct {
	conn db.Conn
}

func NewPolicyRepository(conn db.Conn) *PolicyRepository {
	return &PolicyRepository{conn: conn}
}

// LoadPolicy returns the stored policy. ok is false when the row does not exist yet.
func (r *PolicyRepository) LoadPolicy(ctx context.Context) (policy.Policy, bool, error) {
	var p policy.Policy
	err := r.conn.QueryRow(ctx, `
		SELECT max_citas_activas, horas_confirmar_desde, horas_confirmar_hasta, horas_autoconfirmar,
			max_citas_dia, max_citas_semana, cooldown_dias, max_reprogramaciones,
			min_horas_anticipacion, celular_contacto
		FROM configuracion
		WHERE id = 1
	`).Scan(
		&p.MaxActive,
		&p.ConfirmFromHours,
		&p.ConfirmUntilHours,
		&p.AutoConfirmHours,
		&p.MaxPerDay,
		&p.MaxPerWeek,
		&p.CooldownDays,
		&p.MaxReschedules,
		&p.MinLeadHours,
		&p.ContactPhone,
	)
	if err != nil {
		if db.IsNotFound(err) {
			return policy.Policy{}, false, nil
		}
		return policy.Policy{}, false, err
	}
	return p, true, nil
}

// SavePolicy upserts the singleton row.
func (r *PolicyRepository) SavePolicy(ctx context.Context, p policy.Policy) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO configuracion (
			id, max_citas_activas, horas_confirmar_desde, horas_confirmar_hasta, horas_autoconfirmar,
			max_citas_dia, max_citas_semana, cooldown_dias, max_reprogramaciones,
			min_horas_anticipacion, celular_contacto, updated_at
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id) DO UPDATE SET
			max_citas_activas = EXCLUDED.max_citas_activas,
			horas_confirmar_desde = EXCLUDED.horas_confirmar_desde,
			horas_confirmar_hasta = EXCLUDED.horas_confirmar_hasta,
			horas_autoconfirmar = EXCLUDED.horas_autoconfirmar,
			max_citas_dia = EXCLUDED.max_citas_dia,
			max_citas_semana = EXCLUDED.max_citas_semana,
			cooldown_dias = EXCLUDED.cooldown_dias,
			max_reprogramaciones = EXCLUDED.max_reprogramaciones,
			min_horas_anticipacion = EXCLUDED.min_horas_anticipacion,
			celular_contacto = EXCLUDED.celular_contacto,
			updated_at = now()
	`, p.MaxActive, p.ConfirmFromHours, p.ConfirmUntilHours, p.AutoConfirmHours, p.MaxPerDay,
		p.MaxPerWeek, p.CooldownDays, p.MaxReschedules, p.MinLeadHours, p.ContactPhone)
	return MapWriteError(err)
}
