package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Finished game states; the feed reports OFF once a game is final.
var finalStates = map[string]bool{"OFF": true, "FINAL": true}

// ErrNoLiveGame is returned when no game id is given and none is live.
var ErrNoLiveGame = errors.New("no live game")

// Run watches a game until it ends, MaxPolls is reached or ctx is done.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Named("watch")
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg.BaseURL, cfg.Timeout)

	if err := checkServiceHealth(ctx, c); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	gameID := cfg.GameID
	if gameID == "" {
		id, err := pickLiveGame(ctx, c)
		if err != nil {
			return err
		}
		gameID = id
	}
	log.Info(ctx, "watching game", logger.String("game_id", gameID), logger.Duration("interval", cfg.Interval))

	if cfg.Model != "" {
		if err := c.do(ctx, http.MethodPost, "/model", modelRequest{Workspace: cfg.Workspace, Model: cfg.Model, Version: "latest"}, nil); err != nil {
			return fmt.Errorf("select model: %w", err)
		}
		log.Info(ctx, "model selected", logger.String("model", cfg.Model))
	}

	err := pollLoop(ctx, c, cfg, gameID, stats, log)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// The run context may be done; the final reads get their own.
	finalCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	var sum summary
	if err := c.do(finalCtx, http.MethodGet, "/games/"+gameID+"/summary", nil, &sum); err == nil {
		log.Info(finalCtx, "expected goals",
			logger.Float64("home_xg", sum.HomeXG),
			logger.Int("home_goals", sum.HomeGoals),
			logger.Float64("away_xg", sum.AwayXG),
			logger.Int("away_goals", sum.AwayGoals),
		)
	}
	if cfg.OutputFile != "" {
		if err := saveTable(finalCtx, c, gameID, cfg.OutputFile); err != nil {
			log.Warn(finalCtx, "failed to save table", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(finalCtx, log, stats)
	return nil
}

// pollLoop polls until the game is final, MaxPolls is hit or ctx ends.
// Failed polls are logged and retried on the next tick.
func pollLoop(ctx context.Context, c *client, cfg *Config, gameID string, stats *Stats, log logger.Logger) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		var batch model.Batch
		stats.Polls++
		if err := c.do(ctx, http.MethodPost, "/games/"+gameID+"/poll", nil, &batch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.PollsFailed++
			log.Warn(ctx, "poll failed", logger.Error(err))
		} else {
			stats.NewEvents += batch.NewEvents
			stats.Rows += len(batch.Rows)
			reportBatch(ctx, log, batch, cfg.Verbose)
			if finalStates[batch.Meta.GameState] {
				log.Info(ctx, "game over", logger.String("state", batch.Meta.GameState))
				return nil
			}
		}
		if cfg.MaxPolls > 0 && stats.Polls >= cfg.MaxPolls {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func reportBatch(ctx context.Context, log logger.Logger, b model.Batch, verbose bool) {
	if len(b.Rows) == 0 {
		log.Debug(ctx, "no new shots", logger.Int("new_events", b.NewEvents))
		return
	}
	log.Info(ctx, "new shots",
		logger.Int("rows", len(b.Rows)),
		logger.String("model", b.Model),
		logger.String("score", scoreLine(b.Meta)),
	)
	if !verbose {
		return
	}
	for _, r := range b.Rows {
		fields := []logger.Field{
			logger.String("event_id", r.EventID),
			logger.String("type", string(r.EventType)),
			logger.String("side", string(r.TeamSide)),
			logger.String("strength", string(r.Strength)),
		}
		if r.ShooterName != nil {
			fields = append(fields, logger.String("shooter", *r.ShooterName))
		}
		if r.GoalProb != nil {
			fields = append(fields, logger.Float64("goal_prob", *r.GoalProb))
		}
		log.Info(ctx, "shot", fields...)
	}
}

func scoreLine(m model.GameMeta) string {
	score := func(p *int) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprint(*p)
	}
	return fmt.Sprintf("%s %s - %s %s", m.HomeTeam, score(m.HomeScore), score(m.AwayScore), m.AwayTeam)
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, c *client) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// pickLiveGame returns the first game currently in progress.
func pickLiveGame(ctx context.Context, c *client) (string, error) {
	var live liveResponse
	if err := c.do(ctx, http.MethodGet, "/live", nil, &live); err != nil {
		return "", fmt.Errorf("list live games: %w", err)
	}
	for _, g := range live.Games {
		if g.IsLive() {
			return fmt.Sprint(g.ID), nil
		}
	}
	return "", ErrNoLiveGame
}

// saveTable writes the game's accumulated table to filename as JSON.
func saveTable(ctx context.Context, c *client, gameID, filename string) error {
	var table tableResponse
	if err := c.do(ctx, http.MethodGet, "/games/"+gameID+"/table", nil, &table); err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal table: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	logger.Get().Info(ctx, "table saved", logger.String("filename", filename), logger.Int("rows", len(table.Rows)))
	return nil
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "final statistics",
		logger.Int("polls", stats.Polls),
		logger.Int("pollsFailed", stats.PollsFailed),
		logger.Int("newEvents", stats.NewEvents),
		logger.Int("rows", stats.Rows),
		logger.String("duration", stats.Duration.String()),
	)
}
