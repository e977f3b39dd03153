package handlers

import (
	"log/slog"
	"net/http"

	"github.com/oralflow/oralflow/services/clinic-service/internal/booking"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

type ScheduleHandler struct {
	svc  *booking.Service
	errs errorWriter
}

func NewScheduleHandler(svc *booking.Service, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, errs: errorWriter{logger: logger}}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request, _ model.Actor) {
	dentist, err := requiredInt64(r, "id_odontologo")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	windows, err := h.svc.Windows(r.Context(), dentist)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, windows)
}

type createWindowRequest struct {
	DentistID int64  `json:"id_odontologo" validate:"required,gt=0"`
	Weekday   *int   `json:"dia_semana" validate:"required,gte=0,lte=6"`
	Start     string `json:"hora_inicio" validate:"required"`
	End       string `json:"hora_fin" validate:"required"`
	Active    *bool  `json:"vigente"`
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	var req createWindowRequest
	if err := decode(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	start, end, err := clockPair(req.Start, req.End)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	win := model.Window{DentistID: req.DentistID, Weekday: *req.Weekday, Start: start, End: end, Active: true}
	if req.Active != nil {
		win.Active = *req.Active
	}
	created, err := h.svc.CreateWindow(r.Context(), actor, win)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type updateWindowRequest struct {
	Start  *string `json:"hora_inicio"`
	End    *string `json:"hora_fin"`
	Active *bool   `json:"vigente"`
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req updateWindowRequest
	if err := decode(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	patch := booking.WindowPatch{Active: req.Active}
	if req.Start != nil {
		c, err := parseClock("hora_inicio", *req.Start)
		if err != nil {
			h.errs.write(w, r, err)
			return
		}
		patch.Start = &c
	}
	if req.End != nil {
		c, err := parseClock("hora_fin", *req.End)
		if err != nil {
			h.errs.write(w, r, err)
			return
		}
		patch.End = &c
	}
	updated, err := h.svc.UpdateWindow(r.Context(), actor, id, patch)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// clockPair parses the bounds of a window.
func clockPair(start, end string) (calendar.Clock, calendar.Clock, error) {
	s, err := parseClock("hora_inicio", start)
	if err != nil {
		return 0, 0, err
	}
	e, err := parseClock("hora_fin", end)
	if err != nil {
		return 0, 0, err
	}
	return s, e, nil
}
