package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/maintenance"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/storage"
)

// BlockHandler serves the block groups and the maintenance previews and applies tied
// to them.
type BlockHandler struct {
	svc  *maintenance.Service
	errs errorWriter
}

func NewBlockHandler(svc *maintenance.Service, logger *slog.Logger) *BlockHandler {
	return &BlockHandler{svc: svc, errs: errorWriter{logger: logger}}
}

type groupResponse struct {
	ID          string  `json:"id"`
	Start       string  `json:"fecha_inicio"`
	End         string  `json:"fecha_fin"`
	Reason      string  `json:"motivo"`
	Recurring   bool    `json:"recurrente_anual"`
	DentistID   *int64  `json:"id_odontologo"`
	DentistName *string `json:"odontologo_nombre"`
}

func newGroupResponse(g model.BlockGroup) groupResponse {
	return groupResponse{
		ID:          g.ID.String(),
		Start:       calendar.FormatDate(g.Start),
		End:         calendar.FormatDate(g.End),
		Reason:      g.Reason,
		Recurring:   g.Recurring,
		DentistID:   g.DentistID,
		DentistName: g.DentistName,
	}
}

type groupRequest struct {
	Start     string `json:"fecha_inicio" validate:"required"`
	End       string `json:"fecha_fin" validate:"required"`
	Reason    string `json:"motivo"`
	Recurring bool   `json:"recurrente_anual"`
	DentistID *int64 `json:"id_odontologo" validate:"omitempty,gt=0"`
	Confirm   bool   `json:"confirm"`
}

func (req groupRequest) input() (maintenance.GroupInput, error) {
	start, err := parseDate("fecha_inicio", req.Start)
	if err != nil {
		return maintenance.GroupInput{}, err
	}
	end, err := parseDate("fecha_fin", req.End)
	if err != nil {
		return maintenance.GroupInput{}, err
	}
	return maintenance.GroupInput{
		Start:     start,
		End:       end,
		Reason:    req.Reason,
		Recurring: req.Recurring,
		DentistID: req.DentistID,
	}, nil
}

func groupID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("grupo"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("No encontrado.")
	}
	return id, nil
}

func (h *BlockHandler) List(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	var (
		f   storage.GroupFilter
		err error
	)
	if f.DentistID, err = queryInt64(r, "id_odontologo"); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("global"); raw != "" {
		if f.Global, err = strconv.ParseBool(raw); err != nil {
			h.errs.write(w, r, apperr.Validation("global", "Debe ser true o false."))
			return
		}
	}
	if f.Start, err = queryDate(r, "start"); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if f.End, err = queryDate(r, "end"); err != nil {
		h.errs.write(w, r, err)
		return
	}
	groups, err := h.svc.Groups(r.Context(), actor, f)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, newGroupResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BlockHandler) decodeGroup(r *http.Request) (groupRequest, maintenance.GroupInput, error) {
	var req groupRequest
	if err := decode(r, &req); err != nil {
		return req, maintenance.GroupInput{}, err
	}
	in, err := req.input()
	return req, in, err
}

func (h *BlockHandler) Create(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	_, in, err := h.decodeGroup(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	g, err := h.svc.CreateGroup(r.Context(), actor, in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGroupResponse(g))
}

type groupPatchRequest struct {
	Start     *string `json:"fecha_inicio"`
	End       *string `json:"fecha_fin"`
	Reason    *string `json:"motivo"`
	Recurring *bool   `json:"recurrente_anual"`
}

func (h *BlockHandler) Update(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := groupID(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req groupPatchRequest
	if err := decode(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	patch := maintenance.GroupPatch{Reason: req.Reason, Recurring: req.Recurring}
	if req.Start != nil {
		d, err := parseDate("fecha_inicio", *req.Start)
		if err != nil {
			h.errs.write(w, r, err)
			return
		}
		patch.Start = &d
	}
	if req.End != nil {
		d, err := parseDate("fecha_fin", *req.End)
		if err != nil {
			h.errs.write(w, r, err)
			return
		}
		patch.End = &d
	}
	g, err := h.svc.UpdateGroup(r.Context(), actor, id, patch)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGroupResponse(g))
}

func (h *BlockHandler) Delete(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := groupID(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if err := h.svc.DeleteGroup(r.Context(), actor, id); err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BlockHandler) PreviewDraft(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	_, in, err := h.decodeGroup(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.PreviewDraft(r.Context(), actor, in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createAppliedResponse struct {
	Group   groupResponse        `json:"group"`
	Preview maintenance.Preview  `json:"preview"`
	Apply   *maintenance.Applied `json:"apply,omitempty"`
}

func (h *BlockHandler) CreateAndApply(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	req, in, err := h.decodeGroup(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.CreateAndApply(r.Context(), actor, in, req.Confirm)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createAppliedResponse{
		Group:   newGroupResponse(res.Group),
		Preview: res.Preview,
		Apply:   res.Apply,
	})
}

func (h *BlockHandler) PreviewGroup(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := groupID(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.PreviewGroup(r.Context(), actor, id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BlockHandler) PreviewReactivation(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := groupID(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.PreviewGroupReactivation(r.Context(), actor, id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type confirmBody struct {
	Confirm bool `json:"confirm"`
}

func (h *BlockHandler) Apply(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := groupID(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	var req confirmBody
	if err := decodeOptional(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.ApplyGroup(r.Context(), actor, id, req.Confirm)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BlockHandler) Reactivate(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	id, err := groupID(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	res, err := h.svc.ReactivateGroup(r.Context(), actor, id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
