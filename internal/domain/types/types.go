// Package types contains common types used across the application
package types

import "github.com/okian/icexg/internal/domain/model"

// Summary compares expected goals with actual goals for each side.
type Summary struct {
	GameID    string  `json:"game_id"`
	Rows      int     `json:"rows"`
	Unscored  int     `json:"unscored"`
	HomeXG    float64 `json:"home_xg"`
	AwayXG    float64 `json:"away_xg"`
	HomeGoals int     `json:"home_goals"`
	AwayGoals int     `json:"away_goals"`
	HomeDiff  float64 `json:"home_diff"` // goals minus xG
	AwayDiff  float64 `json:"away_diff"`
}

// Summarize sums goal probabilities and goals per side. Rows without a
// probability count as zero xG.
func Summarize(gameID string, rows []model.ScoredRow) Summary {
	s := Summary{GameID: gameID, Rows: len(rows)}
	for _, r := range rows {
		p := 0.0
		if r.GoalProb != nil {
			p = *r.GoalProb
		} else {
			s.Unscored++
		}
		if r.IsHome {
			s.HomeXG += p
			s.HomeGoals += r.IsGoal
		} else {
			s.AwayXG += p
			s.AwayGoals += r.IsGoal
		}
	}
	s.HomeDiff = float64(s.HomeGoals) - s.HomeXG
	s.AwayDiff = float64(s.AwayGoals) - s.AwayXG
	return s
}

// Stats is a point-in-time view of the service.
type Stats struct {
	Sessions    int              `json:"sessions"`
	Tracked     []string         `json:"tracked"`
	Model       string           `json:"model,omitempty"`
	QueueSize   int              `json:"queue_size"`
	StreamPeers int              `json:"stream_peers"`
	LedgerSizes map[string]int64 `json:"ledger_sizes"`
}
