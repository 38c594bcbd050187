// Package watch is a terminal client for the xG service: it polls one game
// on an interval and reports new shots and the running expected goals.
package watch

import (
	"time"

	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/types"
)

// Config holds configuration for a watch run.
type Config struct {
	BaseURL    string        // Base URL of the service
	GameID     string        // Game to watch; empty picks the first live game
	Model      string        // Model to select before polling; empty keeps the active one
	Workspace  string        // Registry workspace for Model
	Interval   time.Duration // Delay between polls
	MaxPolls   int           // Stop after this many polls; 0 runs until the game ends
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Where to save the final table; empty skips saving
	Verbose    bool          // Log every row
}

// Stats holds run statistics.
type Stats struct {
	Polls       int
	PollsFailed int
	NewEvents   int
	Rows        int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

type liveResponse struct {
	Games []model.LiveGame `json:"games"`
}

type tableResponse struct {
	GameID string            `json:"game_id"`
	Meta   *model.GameMeta   `json:"meta"`
	Rows   []model.ScoredRow `json:"rows"`
}

type modelRequest struct {
	Workspace string `json:"workspace"`
	Model     string `json:"model"`
	Version   string `json:"version"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// summary aliases the service summary shape.
type summary = types.Summary
