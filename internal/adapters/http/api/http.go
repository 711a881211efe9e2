// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	model "github.com/okian/taikai/internal/domain/model"
	"github.com/okian/taikai/pkg/logger"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TeamDependencies
	ReferenceDependencies
	ScoreDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	teamsHandler     *TeamsHandler
	referenceHandler *ReferenceHandler
	scoresHandler    *ScoresHandler

	websocket   http.Handler
	static      http.Handler
	corsOrigins []string
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		teamsHandler:     NewTeamsHandler(deps),
		referenceHandler: NewReferenceHandler(deps),
		scoresHandler:    NewScoresHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router serving every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	s.Register(context.Background(), r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/teams", MetricsMiddleware(s.teamsHandler.HandleGet, "teams"))
		r.Post("/teams", MetricsMiddleware(s.teamsHandler.HandleSet, "teams"))
		r.Post("/teams/recompute", MetricsMiddleware(s.teamsHandler.HandleRecompute, "teams_recompute"))

		r.Get("/musclemax", MetricsMiddleware(s.referenceHandler.HandleGetMuscleMax, "musclemax"))
		r.Post("/musclemax", MetricsMiddleware(s.referenceHandler.HandleSetMuscleMax, "musclemax"))
		r.Get("/cosplay", MetricsMiddleware(s.referenceHandler.HandleGetCosplay, "cosplay"))
		r.Post("/cosplay", MetricsMiddleware(s.referenceHandler.HandleSetCosplay, "cosplay"))

		r.Get("/eventscores", MetricsMiddleware(s.scoresHandler.HandleGet, "eventscores"))
		r.Post("/eventscores", MetricsMiddleware(s.scoresHandler.HandlePost, "eventscores"))
	})

	if s.websocket != nil {
		r.Handle("/ws", s.websocket)
	}
	if s.static != nil {
		r.Handle("/*", s.static)
	}
}

type successResponse struct {
	Success  bool         `json:"success"`
	Accepted *bool        `json:"accepted,omitempty"`
	Teams    []model.Team `json:"teams,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and writes the error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// decodeBody reads a single JSON value from the request into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must contain a single JSON value")
	}
	return nil
}
