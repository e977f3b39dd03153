package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/oralflow/oralflow/services/clinic-service/internal/booking"
	"github.com/oralflow/oralflow/services/clinic-service/internal/maintenance"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

const prefix = "/api/v1"

// Register mounts the clinic API on mux.
func Register(mux *http.ServeMux, bookings *booking.Service, bulk *maintenance.Service, logger *slog.Logger) {
	citas := NewAppointmentHandler(bookings, logger)
	horarios := NewScheduleHandler(bookings, logger)
	config := NewPolicyHandler(bookings, logger)
	bloqueos := NewBlockHandler(bulk, logger)
	masivo := NewBulkHandler(bulk, logger)

	handle := func(pattern string, fn func(http.ResponseWriter, *http.Request, model.Actor)) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+prefix+path, authed(fn))
	}

	handle("GET /citas", citas.List)
	handle("POST /citas", citas.Create)
	handle("GET /citas/{id}", citas.Get)
	handle("PATCH /citas/{id}/confirmar", citas.Confirm)
	handle("PATCH /citas/{id}/cancelar", citas.Cancel)
	handle("PATCH /citas/{id}/reprogramar", citas.Reschedule)
	handle("PATCH /citas/{id}/realizar", citas.Complete)
	handle("GET /citas/disponibilidad", citas.Availability)
	handle("GET /citas/dia-metadata", citas.DayMetadata)
	handle("GET /citas/resumen-mensual", citas.MonthSummary)
	handle("GET /citas/bloqueos-mes", citas.BlockedDays)
	handle("GET /citas/paciente/mis-citas/proxima", citas.Next)
	handle("GET /citas/paciente/mis-citas/resumen", citas.History)

	handle("GET /horarios", horarios.List)
	handle("POST /horarios", horarios.Create)
	handle("PATCH /horarios/{id}", horarios.Update)

	handle("GET /bloqueos", bloqueos.List)
	handle("POST /bloqueos", bloqueos.Create)
	handle("POST /bloqueos/preview-mantenimiento", bloqueos.PreviewDraft)
	handle("POST /bloqueos/create-and-apply", bloqueos.CreateAndApply)
	handle("PATCH /bloqueos/{grupo}", bloqueos.Update)
	handle("DELETE /bloqueos/{grupo}", bloqueos.Delete)
	handle("POST /bloqueos/{grupo}/preview-mantenimiento", bloqueos.PreviewGroup)
	handle("POST /bloqueos/{grupo}/preview-reactivar", bloqueos.PreviewReactivation)
	handle("POST /bloqueos/{grupo}/apply-mantenimiento", bloqueos.Apply)
	handle("POST /bloqueos/{grupo}/apply-reactivar", bloqueos.Reactivate)

	handle("POST /odontologos/{id}/preview-mantenimiento", masivo.PreviewDentist)
	handle("POST /odontologos/{id}/apply-mantenimiento", masivo.ApplyDentist)
	handle("POST /odontologos/{id}/apply-reactivate", masivo.ReactivateDentist)
	handle("POST /odontologos/{id}/preview-horario-change", masivo.PreviewWindowChange)
	handle("POST /consultorios/{id}/preview-mantenimiento", masivo.PreviewRoom)
	handle("POST /consultorios/{id}/apply-mantenimiento", masivo.ApplyRoom)
	handle("POST /consultorios/{id}/apply-reactivate", masivo.ReactivateRoom)

	handle("GET /configuracion", config.Get)
	handle("PUT /configuracion", config.Put)
}
