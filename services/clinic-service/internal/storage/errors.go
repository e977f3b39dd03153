package storage

import (
	"errors"

	"github.com/oralflow/oralflow/libs/db"
	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/guard"
)

// ErrNotFound is returned by single row lookups that match nothing.
var ErrNotFound = errors.New("not found")

const (
	constraintBlockDentistDay = "uq_bloqueo_odo_fecha"
	constraintBlockGlobalDay  = "uq_bloqueo_global_fecha"
	constraintWindowUnique    = "uq_horario_odo_dia_rango"
	constraintRoomNumber      = "consultorios_numero_key"
	checkAppointmentMinute    = "chk_cita_hora_en_punto"
	checkAppointmentReason    = "chk_cita_motivo_no_vacio"
	checkWindowRange          = "chk_horario_rango"
)

// MapWriteError turns constraint violations raised by writes into domain errors.
// Errors it does not recognise are returned unchanged.
func MapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if name, ok := db.UniqueViolation(err); ok {
		if e, ok := guard.FromConstraint(name); ok {
			return e
		}
		switch name {
		case constraintBlockDentistDay, constraintBlockGlobalDay:
			return apperr.Invalid("Ya existe un bloqueo que intersecta ese rango (incluye recurrentes).")
		case constraintWindowUnique:
			return apperr.Validation("hora_inicio", "Ya existe un horario igual para ese día.")
		case constraintRoomNumber:
			return apperr.Validation("numero", "Ya existe un consultorio con ese número.")
		}
		return apperr.Invalid("Registro duplicado.")
	}
	if name, ok := db.IsCheckViolation(err); ok {
		switch name {
		case checkAppointmentMinute:
			return apperr.Validation("hora", "Las citas duran 1h y deben iniciar en la hora exacta (minuto 0).")
		case checkAppointmentReason:
			return apperr.Validation("motivo", "El motivo no puede estar vacío.")
		case checkWindowRange:
			return apperr.Validation("hora_fin", "Debe ser mayor que hora_inicio.")
		}
		return apperr.Invalid("Datos inválidos.")
	}
	if db.IsRestrictViolation(err) {
		return apperr.Invalid("Referencia inválida o registro en uso.")
	}
	return err
}

func notFound(err error) error {
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
