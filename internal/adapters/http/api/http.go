// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/scoring"
	"github.com/okian/icexg/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	GameDependencies
	ModelDependencies
	LiveDependencies
	StatsProvider
}

// GameDependencies covers per-game operations.
type GameDependencies interface {
	Poll(ctx context.Context, gameID string) (model.Batch, error)
	Table(ctx context.Context, gameID string) ([]model.ScoredRow, error)
	Summary(ctx context.Context, gameID string) (types.Summary, error)
	Meta(gameID string) (model.GameMeta, bool)
	ResetSession(ctx context.Context, gameID string) error
	Drop(ctx context.Context, gameID string) error
	Track(ctx context.Context, gameID string) error
	Untrack(ctx context.Context, gameID string)
}

// ModelDependencies covers model selection.
type ModelDependencies interface {
	SelectModel(ctx context.Context, req scoring.ModelRequest) (scoring.ModelInfo, error)
	ActiveModel() (scoring.ModelInfo, error)
	ModelLogs(ctx context.Context) ([]string, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	gamesHandler  *GamesHandler
	modelHandler  *ModelHandler
	liveHandler   *LiveHandler
	stream        http.Handler
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithStream serves h on GET /stream.
func WithStream(h http.Handler) ServerOption {
	return func(s *Server) {
		s.stream = h
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		gamesHandler:  NewGamesHandler(deps),
		modelHandler:  NewModelHandler(deps),
		liveHandler:   NewLiveHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /live", MetricsMiddleware(s.liveHandler.HandleLive, "live"))

	mux.HandleFunc("POST /games/{id}/poll", MetricsMiddleware(s.gamesHandler.HandlePoll, "poll"))
	mux.HandleFunc("GET /games/{id}/table", MetricsMiddleware(s.gamesHandler.HandleTable, "table"))
	mux.HandleFunc("GET /games/{id}/summary", MetricsMiddleware(s.gamesHandler.HandleSummary, "summary"))
	mux.HandleFunc("POST /games/{id}/reset", MetricsMiddleware(s.gamesHandler.HandleReset, "reset"))
	mux.HandleFunc("DELETE /games/{id}", MetricsMiddleware(s.gamesHandler.HandleDrop, "drop"))
	mux.HandleFunc("POST /games/{id}/track", MetricsMiddleware(s.gamesHandler.HandleTrack, "track"))
	mux.HandleFunc("DELETE /games/{id}/track", MetricsMiddleware(s.gamesHandler.HandleUntrack, "track"))

	mux.HandleFunc("GET /model", MetricsMiddleware(s.modelHandler.HandleActive, "model"))
	mux.HandleFunc("POST /model", MetricsMiddleware(s.modelHandler.HandleSelect, "model"))
	mux.HandleFunc("GET /model/logs", MetricsMiddleware(s.modelHandler.HandleLogs, "model_logs"))

	// The upgrade needs the raw writer, so the stream is not wrapped.
	if s.stream != nil {
		mux.Handle("GET /stream", s.stream)
	}
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

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
