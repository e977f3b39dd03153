package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/booking"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/storage"
)

type AppointmentHandler struct {
	svc  *booking.Service
	errs errorWriter
}

func NewAppointmentHandler(svc *booking.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, errs: errorWriter{logger: logger}}
}

type roomRef struct {
	ID     int64  `json:"id_consultorio"`
	Number string `json:"numero"`
}

type appointmentResponse struct {
	ID                 int64                     `json:"id_cita"`
	PatientID          int64                     `json:"id_paciente"`
	PatientName        string                    `json:"paciente_nombre"`
	PatientPhone       string                    `json:"paciente_celular"`
	DentistID          int64                     `json:"id_odontologo"`
	DentistName        string                    `json:"odontologo_nombre"`
	Room               roomRef                   `json:"consultorio"`
	Date               string                    `json:"fecha"`
	Start              calendar.Clock            `json:"hora_inicio"`
	End                calendar.Clock            `json:"hora_fin"`
	Reason             string                    `json:"motivo"`
	Status             model.Status              `json:"estado"`
	Reschedules        int                       `json:"reprogramaciones"`
	CancelledAt        *time.Time                `json:"cancelada_en"`
	CancelledByRole    *model.Role               `json:"cancelada_por_rol"`
	NoShow             bool                      `json:"ausentismo"`
	RescheduledAt      *time.Time                `json:"reprogramada_en"`
	RescheduledByRole  *model.Role               `json:"reprogramada_por_rol"`
	BatchID            *string                   `json:"batch_id"`
	ConfirmationSource *model.ConfirmationSource `json:"confirmacion_fuente"`
	Observation        *string                   `json:"observacion"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

func newAppointmentResponse(d model.AppointmentDetail) appointmentResponse {
	var batch *string
	if d.BatchID != nil {
		s := d.BatchID.String()
		batch = &s
	}
	return appointmentResponse{
		ID:                 d.ID,
		PatientID:          d.PatientID,
		PatientName:        d.PatientName,
		PatientPhone:       d.PatientPhone,
		DentistID:          d.DentistID,
		DentistName:        d.DentistName,
		Room:               roomRef{ID: d.RoomID, Number: d.RoomNumber},
		Date:               calendar.FormatDate(d.Date),
		Start:              d.Time,
		End:                d.Time.Add(time.Hour),
		Reason:             d.Reason,
		Status:             d.Status,
		Reschedules:        d.Reschedules,
		CancelledAt:        d.CancelledAt,
		CancelledByRole:    d.CancelledByRole,
		NoShow:             d.NoShow,
		RescheduledAt:      d.RescheduledAt,
		RescheduledByRole:  d.RescheduledByRole,
		BatchID:            batch,
		ConfirmationSource: d.ConfirmationSource,
		Observation:        d.Observation,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

type createAppointmentRequest struct {
	PatientID int64  `json:"id_paciente"`
	DentistID int64  `json:"id_odontologo" validate:"required,gt=0"`
	RoomID    int64  `json:"id_consultorio" validate:"required,gt=0"`
	Date      string `json:"fecha" validate:"required"`
	Time      string `json:"hora" validate:"required"`
	Reason    string `json:"motivo" validate:"required"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	var req createAppointmentRequest
	if err := decode(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if actor.Role.IsStaff() && req.PatientID <= 0 {
		h.errs.write(w, r, apperr.Validation("id_paciente", "Este campo es requerido."))
		return
	}
	date, err := parseDate("fecha", req.Date)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	at, err := parseClock("hora", req.Time)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.svc.Create(r.Context(), actor, booking.CreateInput{
		PatientID: req.PatientID,
		DentistID: req.DentistID,
		RoomID:    req.RoomID,
		Date:      date,
		Time:      at,
		Reason:    req.Reason,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAppointmentResponse(d))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	f, err := listFilter(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	items, err := h.svc.List(r.Context(), actor, f)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	out := make([]appointmentResponse, 0, len(items))
	for _, d := range items {
		out = append(out, newAppointmentResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func listFilter(r *http.Request) (storage.ListFilter, error) {
	var (
		f    storage.ListFilter
		err  error
		errs []*apperr.Error
	)
	collect := func(e error) {
		if ae, ok := apperr.As(e); ok {
			errs = append(errs, ae)
		}
	}
	if f.DentistID, err = queryInt64(r, "id_odontologo"); err != nil {
		collect(err)
	}
	if f.RoomID, err = queryInt64(r, "id_consultorio"); err != nil {
		collect(err)
	}
	if f.PatientID, err = queryInt64(r, "id_paciente"); err != nil {
		collect(err)
	}
	if f.Date, err = queryDate(r, "fecha"); err != nil {
		collect(err)
	}
	if f.From, err = queryDate(r, "start"); err != nil {
		collect(err)
	}
	if f.To, err = queryDate(r, "end"); err != nil {
		collect(err)
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("estado")); raw != "" {
		st := model.Status(raw)
		if !st.Valid() {
			errs = append(errs, apperr.Validation("estado", "Estado inválido."))
		} else {
			f.Status = &st
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil || f.Limit < 0 {
			errs = append(errs, apperr.Validation("limit", "Debe ser un entero positivo."))
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if f.Offset, err = strconv.Atoi(raw); err != nil || f.Offset < 0 {
			errs = append(errs, apperr.Validation("offset", "Debe ser un entero positivo."))
		}
	}
	if len(errs) > 0 {
		return storage.ListFilter{}, apperr.Merge(errs...)
	}
	return f, nil
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentResponse(d))
}

type confirmRequest struct {
	Source string `json:"fuente" validate:"omitempty,oneof=whatsapp web recepcion"`
}

func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req confirmRequest
	if err := decodeOptional(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.svc.Confirm(r.Context(), actor, id, model.ConfirmationSource(req.Source))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentResponse(d))
}

type cancelRequest struct {
	NoShow bool `json:"ausentismo"`
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req cancelRequest
	if err := decodeOptional(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.svc.Cancel(r.Context(), actor, id, req.NoShow)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentResponse(d))
}

type rescheduleRequest struct {
	Date   string `json:"fecha" validate:"required"`
	Time   string `json:"hora" validate:"required"`
	RoomID *int64 `json:"id_consultorio" validate:"omitempty,gt=0"`
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req rescheduleRequest
	if err := decode(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	date, err := parseDate("fecha", req.Date)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	at, err := parseClock("hora", req.Time)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.svc.Reschedule(r.Context(), actor, id, booking.RescheduleInput{Date: date, Time: at, RoomID: req.RoomID})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentResponse(d))
}

type completeRequest struct {
	Observation *string `json:"observacion"`
}

func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req completeRequest
	if err := decodeOptional(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	d, err := h.svc.Complete(r.Context(), actor, id, req.Observation)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentResponse(d))
}

func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request, _ model.Actor) {
	date, err := requiredDate(r, "fecha")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	dentist, err := requiredInt64(r, "id_odontologo")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	room, err := queryInt64(r, "id_consultorio")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.Availability(r.Context(), date, dentist, room)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AppointmentHandler) DayMetadata(w http.ResponseWriter, r *http.Request, _ model.Actor) {
	date, err := requiredDate(r, "fecha")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	dentist, err := queryInt64(r, "id_odontologo")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	room, err := queryInt64(r, "id_consultorio")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.DayMetadata(r.Context(), date, dentist, room)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AppointmentHandler) MonthSummary(w http.ResponseWriter, r *http.Request, _ model.Actor) {
	year, err := requiredInt64(r, "anio")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	month, err := requiredInt64(r, "mes")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if month < 1 || month > 12 {
		h.errs.write(w, r, apperr.Validation("mes", "Debe estar entre 1 y 12."))
		return
	}
	dentist, err := queryInt64(r, "id_odontologo")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	room, err := queryInt64(r, "id_consultorio")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.MonthSummary(r.Context(), int(year), time.Month(month), dentist, room)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AppointmentHandler) BlockedDays(w http.ResponseWriter, r *http.Request, _ model.Actor) {
	from, err := requiredDate(r, "start")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	to, err := requiredDate(r, "end")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if to.Before(from) {
		h.errs.write(w, r, apperr.Validation("end", "Debe ser posterior o igual a start."))
		return
	}
	dentist, err := queryInt64(r, "id_odontologo")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.BlockedDays(r.Context(), from, to, dentist)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AppointmentHandler) Next(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	d, err := h.svc.Next(r.Context(), actor)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if d == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, newAppointmentResponse(*d))
}

type historyResponse struct {
	Completed       int     `json:"citas_completadas"`
	LastVisit       *string `json:"ultima_visita"`
	LastObservation *string `json:"ultima_observacion"`
}

func (h *AppointmentHandler) History(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	res, err := h.svc.History(r.Context(), actor)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	out := historyResponse{Completed: res.Completed, LastObservation: res.LastObservation}
	if res.LastVisit != nil {
		s := calendar.FormatDate(*res.LastVisit)
		out.LastVisit = &s
	}
	writeJSON(w, http.StatusOK, out)
}
