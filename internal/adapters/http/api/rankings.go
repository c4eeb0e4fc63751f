package api

import (
	"net/http"

	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/internal/domain/types"
)

// RankingsHandler serves read-only views of a user's graph.
type RankingsHandler struct {
	deps Dependencies
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps Dependencies) *RankingsHandler {
	return &RankingsHandler{deps: deps}
}

type rankingsResponse struct {
	UserID   model.UserID   `json:"user_id"`
	Polarity model.Polarity `json:"polarity"`
	Entries  []types.Entry  `json:"entries"`
}

// HandleGetRankings handles GET /users/{user}/{polarity}/rankings. The
// optional candidates query lists item ids to report as unranked when they
// were never compared.
func (h *RankingsHandler) HandleGetRankings(w http.ResponseWriter, r *http.Request) {
	user, pol, err := scope(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	candidates, err := parseItemList(r.URL.Query().Get("candidates"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	entries, err := h.deps.Standings(r.Context(), user, pol, candidates)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rankingsResponse{UserID: user, Polarity: pol, Entries: entries})
}

// HandleGetMatchup handles GET /users/{user}/{polarity}/matchup. It answers
// 204 when no safe comparison remains.
func (h *RankingsHandler) HandleGetMatchup(w http.ResponseWriter, r *http.Request) {
	user, pol, err := scope(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	m, ok, err := h.deps.SuggestMatchup(r.Context(), user, pol)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type anchorResponse struct {
	ItemID model.ItemID `json:"item_id"`
}

// HandleGetAnchor handles GET /users/{user}/{polarity}/anchor. It answers
// 204 for an empty graph.
func (h *RankingsHandler) HandleGetAnchor(w http.ResponseWriter, r *http.Request) {
	user, pol, err := scope(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	id, ok, err := h.deps.AnchorItem(r.Context(), user, pol)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, anchorResponse{ItemID: id})
}

type cycleResponse struct {
	HasCycle        bool  `json:"has_cycle"`
	WillCreateCycle *bool `json:"will_create_cycle,omitempty"`
}

// HandleGetCycle handles GET /users/{user}/{polarity}/cycle[?a=&b=].
func (h *RankingsHandler) HandleGetCycle(w http.ResponseWriter, r *http.Request) {
	user, pol, err := scope(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
		return
	}
	q := r.URL.Query()

	var resp cycleResponse
	if resp.HasCycle, err = h.deps.HasCycle(r.Context(), user, pol); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if q.Has("a") || q.Has("b") {
		a, err := parseItemID(q.Get("a"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", err)
			return
		}
		b, err := parseItemID(q.Get("b"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", err)
			return
		}
		will, err := h.deps.WillCreateCycle(r.Context(), user, a, b, pol)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp.WillCreateCycle = &will
	}
	writeJSON(w, http.StatusOK, resp)
}
