package handlers

import (
	"log/slog"
	"net/http"

	"github.com/oralflow/oralflow/services/clinic-service/internal/booking"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

type PolicyHandler struct {
	svc  *booking.Service
	errs errorWriter
}

func NewPolicyHandler(svc *booking.Service, logger *slog.Logger) *PolicyHandler {
	return &PolicyHandler{svc: svc, errs: errorWriter{logger: logger}}
}

func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request, _ model.Actor) {
	p, err := h.svc.Policy(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Put replaces the policy. Omitted fields keep their current value.
func (h *PolicyHandler) Put(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	current, err := h.svc.Policy(r.Context())
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	next := current
	if err := decode(r, &next); err != nil {
		h.errs.write(w, r, err)
		return
	}
	saved, err := h.svc.SavePolicy(r.Context(), actor, next)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
