package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	model "github.com/okian/taikai/internal/domain/model"
)

// ScoreDependencies is the ledger part of the service.
type ScoreDependencies interface {
	GetEventScores(ctx context.Context) ([]model.ScoreRecord, error)
	SubmitEventScore(ctx context.Context, r model.ScoreRecord) (bool, error)
	ReplaceEventScores(ctx context.Context, records []model.ScoreRecord) error
}

// ScoresHandler handles ledger requests.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandleGet handles GET /api/eventscores.
func (h *ScoresHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	records, err := h.deps.GetEventScores(r.Context())
	if err != nil {
		writeError(w, r, Wrap("api.get_eventscores", err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandlePost handles POST /api/eventscores. An object body submits one record,
// an array body replaces the whole ledger.
func (h *ScoresHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_eventscores"
	var raw json.RawMessage
	if err := decodeBody(w, r, &raw); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	switch body := bytes.TrimSpace(raw); {
	case len(body) > 0 && body[0] == '[':
		var records []model.ScoreRecord
		if err := json.Unmarshal(body, &records); err != nil {
			writeError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
		if err := h.deps.ReplaceEventScores(r.Context(), records); err != nil {
			writeError(w, r, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true})

	case len(body) > 0 && body[0] == '{':
		var rec model.ScoreRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			writeError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
		accepted, err := h.deps.SubmitEventScore(r.Context(), rec)
		if err != nil {
			writeError(w, r, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, successResponse{Success: true, Accepted: &accepted})

	default:
		writeError(w, r, WrapKind(op, ErrBadRequest, errors.New("body must be a score object or an array of scores")))
	}
}
