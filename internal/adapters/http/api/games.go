package api

import (
	"net/http"

	"github.com/okian/icexg/internal/domain/model"
)

// GamesHandler serves per-game routes under /games/{id}.
type GamesHandler struct {
	deps GameDependencies
}

// NewGamesHandler creates a new games handler.
func NewGamesHandler(deps GameDependencies) *GamesHandler {
	return &GamesHandler{deps: deps}
}

type tableResponse struct {
	GameID string            `json:"game_id"`
	Meta   *model.GameMeta   `json:"meta,omitempty"`
	Rows   []model.ScoredRow `json:"rows"`
}

type statusResponse struct {
	Status string `json:"status"`
	GameID string `json:"game_id"`
}

// gameID reads and validates the {id} path value.
func gameID(op string, r *http.Request) (string, error) {
	id := r.PathValue("id")
	if !model.ValidGameID(id) {
		return "", NewKind(op, ErrBadRequest)
	}
	return id, nil
}

// HandlePoll handles POST /games/{id}/poll.
func (h *GamesHandler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	const op = "api.poll"
	id, err := gameID(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	batch, err := h.deps.Poll(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// HandleTable handles GET /games/{id}/table.
func (h *GamesHandler) HandleTable(w http.ResponseWriter, r *http.Request) {
	const op = "api.table"
	id, err := gameID(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	rows, err := h.deps.Table(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := tableResponse{GameID: id, Rows: rows}
	if meta, ok := h.deps.Meta(id); ok {
		resp.Meta = &meta
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSummary handles GET /games/{id}/summary.
func (h *GamesHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.summary"
	id, err := gameID(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	sum, err := h.deps.Summary(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleReset handles POST /games/{id}/reset.
func (h *GamesHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset"
	id, err := gameID(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.ResetSession(r.Context(), id); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "reset", GameID: id})
}

// HandleDrop handles DELETE /games/{id}.
func (h *GamesHandler) HandleDrop(w http.ResponseWriter, r *http.Request) {
	const op = "api.drop"
	id, err := gameID(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.Drop(r.Context(), id); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "dropped", GameID: id})
}

// HandleTrack handles POST /games/{id}/track.
func (h *GamesHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	const op = "api.track"
	id, err := gameID(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.Track(r.Context(), id); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "tracking", GameID: id})
}

// HandleUntrack handles DELETE /games/{id}/track.
func (h *GamesHandler) HandleUntrack(w http.ResponseWriter, r *http.Request) {
	const op = "api.untrack"
	id, err := gameID(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	h.deps.Untrack(r.Context(), id)
	writeJSON(w, http.StatusOK, statusResponse{Status: "untracked", GameID: id})
}
