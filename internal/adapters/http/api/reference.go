package api

import (
	"context"
	"net/http"

	model "github.com/okian/taikai/internal/domain/model"
)

// ReferenceDependencies covers the muscle-max ceilings and cosplay votes.
type ReferenceDependencies interface {
	GetMuscleMax(ctx context.Context) (model.MuscleMax, error)
	SetMuscleMax(ctx context.Context, m model.MuscleMax) error
	GetCosplayVotes(ctx context.Context) ([]model.CosplayVote, error)
	SetCosplayVotes(ctx context.Context, votes []model.CosplayVote) error
}

// ReferenceHandler handles the muscle-max and cosplay documents.
type ReferenceHandler struct {
	deps ReferenceDependencies
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(deps ReferenceDependencies) *ReferenceHandler {
	return &ReferenceHandler{deps: deps}
}

// HandleGetMuscleMax handles GET /api/musclemax.
func (h *ReferenceHandler) HandleGetMuscleMax(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.GetMuscleMax(r.Context())
	if err != nil {
		writeError(w, r, Wrap("api.get_musclemax", err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleSetMuscleMax handles POST /api/musclemax.
func (h *ReferenceHandler) HandleSetMuscleMax(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_musclemax"
	var m model.MuscleMax
	if err := decodeBody(w, r, &m); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.SetMuscleMax(r.Context(), m); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleGetCosplay handles GET /api/cosplay.
func (h *ReferenceHandler) HandleGetCosplay(w http.ResponseWriter, r *http.Request) {
	votes, err := h.deps.GetCosplayVotes(r.Context())
	if err != nil {
		writeError(w, r, Wrap("api.get_cosplay", err))
		return
	}
	writeJSON(w, http.StatusOK, votes)
}

// HandleSetCosplay handles POST /api/cosplay. The body replaces every vote.
func (h *ReferenceHandler) HandleSetCosplay(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_cosplay"
	var votes []model.CosplayVote
	if err := decodeBody(w, r, &votes); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.SetCosplayVotes(r.Context(), votes); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
