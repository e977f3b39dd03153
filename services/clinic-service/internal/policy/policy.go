package policy

import (
	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
)

// Policy holds the clinic wide booking limits. Hour fields are whole hours.
type Policy struct {
	MaxActive         int    `json:"max_citas_activas"`
	ConfirmFromHours  int    `json:"horas_confirmar_desde"`
	ConfirmUntilHours int    `json:"horas_confirmar_hasta"`
	AutoConfirmHours  int    `json:"horas_autoconfirmar"`
	MaxPerDay         int    `json:"max_citas_dia"`
	MaxPerWeek        int    `json:"max_citas_semana"`
	CooldownDays      int    `json:"cooldown_dias"`
	MaxReschedules    int    `json:"max_reprogramaciones"`
	MinLeadHours      int    `json:"min_horas_anticipacion"`
	ContactPhone      string `json:"celular_contacto"`
}

func Defaults() Policy {
	return Policy{
		MaxActive:         1,
		ConfirmFromHours:  24,
		ConfirmUntilHours: 12,
		AutoConfirmHours:  24,
		MaxPerDay:         1,
		MaxPerWeek:        5,
		CooldownDays:      3,
		MaxReschedules:    1,
		MinLeadHours:      2,
		ContactPhone:      "0999999999",
	}
}

// Validate checks the cross field rules. Every violation is reported under its field.
func (p Policy) Validate() error {
	fields := map[string]string{}
	nonNegative := map[string]int{
		"max_citas_activas":      p.MaxActive,
		"horas_confirmar_desde":  p.ConfirmFromHours,
		"horas_confirmar_hasta":  p.ConfirmUntilHours,
		"horas_autoconfirmar":    p.AutoConfirmHours,
		"max_citas_dia":          p.MaxPerDay,
		"max_citas_semana":       p.MaxPerWeek,
		"cooldown_dias":          p.CooldownDays,
		"max_reprogramaciones":   p.MaxReschedules,
		"min_horas_anticipacion": p.MinLeadHours,
	}
	for field, v := range nonNegative {
		if v < 0 {
			fields[field] = "Debe ser mayor o igual a 0."
		}
	}
	if p.ConfirmUntilHours >= p.ConfirmFromHours {
		setOnce(fields, "horas_confirmar_hasta", "Debe ser menor que horas_confirmar_desde.")
	}
	if p.MinLeadHours >= p.ConfirmFromHours {
		setOnce(fields, "min_horas_anticipacion", "Debe ser menor que horas_confirmar_desde.")
	}
	if p.AutoConfirmHours > p.ConfirmFromHours {
		setOnce(fields, "horas_autoconfirmar", "No puede ser mayor que horas_confirmar_desde.")
	}
	if p.MaxActive < 1 {
		setOnce(fields, "max_citas_activas", "Debe ser al menos 1.")
	}
	if p.MaxPerDay < 1 {
		setOnce(fields, "max_citas_dia", "Debe ser al menos 1.")
	}
	if p.MaxPerWeek < p.MaxPerDay {
		setOnce(fields, "max_citas_semana", "No puede ser menor que max_citas_dia.")
	}
	if len(fields) == 0 {
		return nil
	}
	return &apperr.Error{Kind: apperr.KindValidation, Fields: fields}
}

func setOnce(fields map[string]string, k, v string) {
	if _, ok := fields[k]; !ok {
		fields[k] = v
	}
}
