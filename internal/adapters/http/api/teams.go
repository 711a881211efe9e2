package api

import (
	"context"
	"net/http"

	model "github.com/okian/taikai/internal/domain/model"
)

// TeamDependencies is the roster part of the service.
type TeamDependencies interface {
	GetTeams(ctx context.Context) ([]model.Team, error)
	SetTeams(ctx context.Context, teams []model.Team) error
	RecomputeTeamsFromEvents(ctx context.Context) ([]model.Team, error)
}

// TeamsHandler handles roster requests.
type TeamsHandler struct {
	deps TeamDependencies
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(deps TeamDependencies) *TeamsHandler {
	return &TeamsHandler{deps: deps}
}

// HandleGet handles GET /api/teams.
func (h *TeamsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	teams, err := h.deps.GetTeams(r.Context())
	if err != nil {
		writeError(w, r, Wrap("api.get_teams", err))
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// HandleSet handles POST /api/teams. The body replaces the whole roster.
func (h *TeamsHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_teams"
	var teams []model.Team
	if err := decodeBody(w, r, &teams); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.SetTeams(r.Context(), teams); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleRecompute handles POST /api/teams/recompute.
func (h *TeamsHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	teams, err := h.deps.RecomputeTeamsFromEvents(r.Context())
	if err != nil {
		writeError(w, r, Wrap("api.recompute_teams", err))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Teams: teams})
}
