package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/icexg/internal/domain/scoring"
)

const defaultModelVersion = "latest"

// ModelHandler handles model selection requests.
type ModelHandler struct {
	deps ModelDependencies
}

// NewModelHandler creates a new model handler.
func NewModelHandler(deps ModelDependencies) *ModelHandler {
	return &ModelHandler{deps: deps}
}

// modelRequest mirrors the body of POST /model.
type modelRequest struct {
	Workspace string `json:"workspace"`
	Model     string `json:"model"`
	Version   string `json:"version"`
}

type modelResponse struct {
	Status    string   `json:"status"`
	Workspace string   `json:"workspace,omitempty"`
	Model     string   `json:"model"`
	Version   string   `json:"version,omitempty"`
	Features  []string `json:"features"`
}

type logsResponse struct {
	Logs []string `json:"logs"`
}

func toModelResponse(status string, info scoring.ModelInfo) modelResponse {
	return modelResponse{
		Status:    status,
		Workspace: info.Workspace,
		Model:     info.Model,
		Version:   info.Version,
		Features:  info.Features,
	}
}

// HandleSelect handles POST /model. Success resets every session.
func (h *ModelHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	const op = "api.select_model"
	var req modelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if req.Version == "" {
		req.Version = defaultModelVersion
	}
	info, err := h.deps.SelectModel(r.Context(), scoring.ModelRequest{
		Workspace: req.Workspace,
		Model:     req.Model,
		Version:   req.Version,
	})
	if err != nil && info.Model == "" {
		writeFailure(w, err)
		return
	}
	// A model switch with a failed session reset still switched the model.
	writeJSON(w, http.StatusOK, toModelResponse("success", info))
}

// HandleActive handles GET /model.
func (h *ModelHandler) HandleActive(w http.ResponseWriter, _ *http.Request) {
	info, err := h.deps.ActiveModel()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toModelResponse("active", info))
}

// HandleLogs handles GET /model/logs.
func (h *ModelHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	lines, err := h.deps.ModelLogs(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Logs: lines})
}
