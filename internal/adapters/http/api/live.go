package api

import (
	"context"
	"net/http"

	"github.com/okian/icexg/internal/domain/model"
)

// LiveDependencies lists scoreboard games.
type LiveDependencies interface {
	LiveGames(ctx context.Context) []model.LiveGame
}

// LiveHandler handles GET /live.
type LiveHandler struct {
	deps LiveDependencies
}

// NewLiveHandler creates a new live handler.
func NewLiveHandler(deps LiveDependencies) *LiveHandler {
	return &LiveHandler{deps: deps}
}

type liveResponse struct {
	Games []model.LiveGame `json:"games"`
}

// HandleLive handles GET /live. The scoreboard being down yields an empty
// list, not an error.
func (h *LiveHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	games := h.deps.LiveGames(r.Context())
	if games == nil {
		games = []model.LiveGame{}
	}
	writeJSON(w, http.StatusOK, liveResponse{Games: games})
}
