package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/maintenance"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

// BulkHandler serves maintenance on a whole dentist or room.
type BulkHandler struct {
	svc  *maintenance.Service
	errs errorWriter
}

func NewBulkHandler(svc *maintenance.Service, logger *slog.Logger) *BulkHandler {
	return &BulkHandler{svc: svc, errs: errorWriter{logger: logger}}
}

type bulkRequest struct {
	Confirm       bool   `json:"confirm"`
	EffectiveFrom string `json:"effective_from"`
	SetInactive   *bool  `json:"set_inactive"`
	SetActive     *bool  `json:"set_active"`
}

// effectiveFrom accepts an RFC 3339 instant or a plain date, read as midnight in the
// clinic zone. Empty means now.
func effectiveFrom(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("effective_from", "Formato inválido. Usa ISO 8601.")
}

func orTrue(b *bool) bool { return b == nil || *b }

func (h *BulkHandler) request(r *http.Request) (bulkRequest, *time.Time, error) {
	var req bulkRequest
	if err := decodeOptional(r, &req); err != nil {
		return req, nil, err
	}
	from, err := effectiveFrom(req.EffectiveFrom, h.svc.Location())
	return req, from, err
}

func (h *BulkHandler) PreviewDentist(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	_, from, err := h.request(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.PreviewDentist(r.Context(), actor, id, from)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BulkHandler) ApplyDentist(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	req, from, err := h.request(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.ApplyDentist(r.Context(), actor, id, maintenance.ApplyOptions{
		Confirm:    req.Confirm,
		From:       from,
		Deactivate: orTrue(req.SetInactive),
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BulkHandler) ReactivateDentist(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	req, from, err := h.request(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.ReactivateDentist(r.Context(), actor, id, maintenance.ReactivateOptions{
		From:     from,
		Activate: orTrue(req.SetActive),
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type proposedWindow struct {
	Weekday *int   `json:"dia_semana" validate:"required,gte=0,lte=6"`
	Start   string `json:"hora_inicio" validate:"required"`
	End     string `json:"hora_fin" validate:"required"`
}

type windowChangeRequest struct {
	Windows       []proposedWindow `json:"horarios" validate:"dive"`
	EffectiveFrom string           `json:"effective_from"`
}

func (h *BulkHandler) PreviewWindowChange(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req windowChangeRequest
	if err := decode(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	from, err := effectiveFrom(req.EffectiveFrom, h.svc.Location())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	proposed := make([]model.Window, 0, len(req.Windows))
	for _, pw := range req.Windows {
		start, end, err := clockPair(pw.Start, pw.End)
		if err != nil {
			h.errs.write(w, r, err)
			return
		}
		proposed = append(proposed, model.Window{Weekday: *pw.Weekday, Start: start, End: end})
	}
	res, err := h.svc.PreviewWindowChange(r.Context(), actor, id, proposed, from)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BulkHandler) PreviewRoom(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	_, from, err := h.request(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.PreviewRoom(r.Context(), actor, id, from)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BulkHandler) ApplyRoom(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	req, from, err := h.request(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.ApplyRoom(r.Context(), actor, id, maintenance.ApplyOptions{
		Confirm:    req.Confirm,
		From:       from,
		Deactivate: orTrue(req.SetInactive),
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BulkHandler) ReactivateRoom(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := pathID(r, "id")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	req, from, err := h.request(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.ReactivateRoom(r.Context(), actor, id, maintenance.ReactivateOptions{
		From:     from,
		Activate: orTrue(req.SetActive),
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
