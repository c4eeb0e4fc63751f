// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	service "github.com/okian/prefrank/internal/app"
	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/internal/domain/preference"
	"github.com/okian/prefrank/internal/domain/types"
	"github.com/okian/prefrank/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the coordinator.
type Dependencies interface {
	Standings(ctx context.Context, userID model.UserID, polarity model.Polarity, candidates []model.ItemID) ([]types.Entry, error)
	RecordJudgment(ctx context.Context, userID model.UserID, itemA, itemB, winner model.ItemID, polarity model.Polarity) (model.Edge, error)
	ForcePlacement(ctx context.Context, userID model.UserID, item model.ItemID, above, below *model.ItemID, polarity model.Polarity) (preference.Placement, error)
	SuggestMatchup(ctx context.Context, userID model.UserID, polarity model.Polarity) (model.Matchup, bool, error)
	AnchorItem(ctx context.Context, userID model.UserID, polarity model.Polarity) (model.ItemID, bool, error)
	HasCycle(ctx context.Context, userID model.UserID, polarity model.Polarity) (bool, error)
	WillCreateCycle(ctx context.Context, userID model.UserID, a, b model.ItemID, polarity model.Polarity) (bool, error)
	Invalidate(userID model.UserID, polarity model.Polarity) error
}

// Server wires HTTP routes for the ranking API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	rankingsHandler *RankingsHandler
	judgeHandler    *JudgmentsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		rankingsHandler: NewRankingsHandler(deps),
		judgeHandler:    NewJudgmentsHandler(deps, v),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, RequestIDMiddleware(MetricsMiddleware(h, endpoint)))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /metrics", "metrics", s.healthHandler.HandleMetrics)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	const base = "/users/{user}/{polarity}"
	route("GET "+base+"/rankings", "rankings", s.rankingsHandler.HandleGetRankings)
	route("GET "+base+"/matchup", "matchup", s.rankingsHandler.HandleGetMatchup)
	route("GET "+base+"/anchor", "anchor", s.rankingsHandler.HandleGetAnchor)
	route("GET "+base+"/cycle", "cycle", s.rankingsHandler.HandleGetCycle)
	route("POST "+base+"/judgments", "judgments", s.judgeHandler.HandlePostJudgment)
	route("POST "+base+"/placements", "placements", s.judgeHandler.HandlePostPlacement)
	route("DELETE "+base+"/cache", "cache", s.judgeHandler.HandleDeleteCache)
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("requestID", RequestID(r.Context())),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, RequestID: RequestID(r.Context())})
}

// writeServiceError maps coordinator errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrCycleRejected):
		writeError(w, r, http.StatusConflict, "cycle_rejected", err)
	case errors.Is(err, service.ErrSelfPreference),
		errors.Is(err, service.ErrInvalidWinner),
		errors.Is(err, service.ErrInvalidPlacement),
		errors.Is(err, service.ErrInvalidPolarity):
		writeError(w, r, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", err)
	}
}

// scope reads the user and polarity path values.
func scope(r *http.Request) (model.UserID, model.Polarity, error) {
	user := strings.TrimSpace(r.PathValue("user"))
	if user == "" {
		return "", "", fmt.Errorf("%w: missing user", ErrBadRequest)
	}
	pol, ok := model.ParsePolarity(r.PathValue("polarity"))
	if !ok {
		return "", "", fmt.Errorf("%w: polarity must be liked or disliked", ErrBadRequest)
	}
	return model.UserID(user), pol, nil
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v any, validate *validator.Validate) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func parseItemID(s string) (model.ItemID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid item id %q", ErrBadRequest, s)
	}
	return model.ItemID(n), nil
}

// parseItemList parses a comma separated id list. Empty yields nil.
func parseItemList(s string) ([]model.ItemID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]model.ItemID, 0, len(parts))
	for _, p := range parts {
		id, err := parseItemID(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
