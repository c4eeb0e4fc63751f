package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/prefrank/internal/domain/model"
)

// JudgmentsHandler serves the mutating endpoints.
type JudgmentsHandler struct {
	deps     Dependencies
	validate *validator.Validate
}

// NewJudgmentsHandler creates a new judgments handler.
func NewJudgmentsHandler(deps Dependencies, v *validator.Validate) *JudgmentsHandler {
	return &JudgmentsHandler{deps: deps, validate: v}
}

// judgmentRequest is the body of POST .../judgments.
type judgmentRequest struct {
	ItemA  model.ItemID `json:"item_a" validate:"gt=0"`
	ItemB  model.ItemID `json:"item_b" validate:"gt=0,nefield=ItemA"`
	Winner model.ItemID `json:"winner" validate:"gt=0"`
}

type judgmentResponse struct {
	Edge model.Edge `json:"edge"`
}

// HandlePostJudgment handles POST /users/{user}/{polarity}/judgments.
func (h *JudgmentsHandler) HandlePostJudgment(w http.ResponseWriter, r *http.Request) {
	user, pol, err := scope(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req judgmentRequest
	if err := decode(r, &req, h.validate); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	e, err := h.deps.RecordJudgment(r.Context(), user, req.ItemA, req.ItemB, req.Winner, pol)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, judgmentResponse{Edge: e})
}

// placementRequest is the body of POST .../placements. At least one anchor
// is required.
type placementRequest struct {
	ItemID model.ItemID  `json:"item_id" validate:"gt=0"`
	Above  *model.ItemID `json:"above" validate:"required_without=Below,omitempty,gt=0"`
	Below  *model.ItemID `json:"below" validate:"required_without=Above,omitempty,gt=0"`
}

type placementResponse struct {
	Persist []model.Edge `json:"persist"`
	Removed []model.Edge `json:"removed"`
}

// HandlePostPlacement handles POST /users/{user}/{polarity}/placements.
func (h *JudgmentsHandler) HandlePostPlacement(w http.ResponseWriter, r *http.Request) {
	user, pol, err := scope(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req placementRequest
	if err := decode(r, &req, h.validate); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	p, err := h.deps.ForcePlacement(r.Context(), user, req.ItemID, req.Above, req.Below, pol)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := placementResponse{Persist: p.Persist(), Removed: p.Removed}
	if resp.Persist == nil {
		resp.Persist = []model.Edge{}
	}
	if resp.Removed == nil {
		resp.Removed = []model.Edge{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDeleteCache handles DELETE /users/{user}/{polarity}/cache.
func (h *JudgmentsHandler) HandleDeleteCache(w http.ResponseWriter, r *http.Request) {
	user, pol, err := scope(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.Invalidate(user, pol); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
