// Package model contains domain models passed between layers.
package model

import "strconv"

// Play type keys emitted by the feed. Other keys are ignored by the extractor.
const (
	TypeKeyGoal       = "goal"
	TypeKeyShotOnGoal = "shot-on-goal"
)

// NoGoalie is the sentinel goalie id the feed uses for an empty net.
const NoGoalie int64 = 0

// RawPlayEvent is one play record decoded from the feed. Every optional
// field is a pointer so that absence survives decoding.
type RawPlayEvent struct {
	EventID          *int64   // unique within a game, stable across fetches
	Index            int      // position in the plays array of the snapshot
	TypeKey          string   // e.g. "goal", "shot-on-goal", "faceoff"
	Period           *int     // period number
	PeriodType       *string  // REG, OT, SO
	TimeRemaining    *string  // mm:ss
	SituationCode    *string  // 4-digit skaters code
	TeamID           *int64   // event owner team
	ScoringPlayerID  *int64   // set on goals
	ShootingPlayerID *int64   // set on shots
	GoalieInNetID    *int64   // nil or NoGoalie when the net is empty
	ShotType         *string  // wrist, slap, ...
	X                *float64 // rink x coordinate
	Y                *float64 // rink y coordinate
}

// Key identifies the play within its game. Plays without an event id fall
// back to their position, which is only stable while the feed appends.
func (e RawPlayEvent) Key() string {
	if e.EventID != nil {
		return strconv.FormatInt(*e.EventID, 10)
	}
	return "idx:" + strconv.Itoa(e.Index)
}

// Team describes one side of a game.
type Team struct {
	ID     int64
	Name   string
	Abbrev string
	Score  *int
}

// Player is a roster entry.
type Player struct {
	ID        int64
	FirstName string
	LastName  string
}

// GameSnapshot is the full feed payload for one game at a point in time.
// Plays are append-only across fetches of the same game.
type GameSnapshot struct {
	GameID        string
	GameState     string
	Home          Team
	Away          Team
	Period        *int
	PeriodType    *string
	TimeRemaining *string
	Roster        []Player
	Plays         []RawPlayEvent
}

// Meta summarizes the snapshot header for display.
func (s GameSnapshot) Meta() GameMeta {
	return GameMeta{
		GameID:        s.GameID,
		GameState:     s.GameState,
		HomeTeam:      s.Home.Name,
		AwayTeam:      s.Away.Name,
		HomeScore:     s.Home.Score,
		AwayScore:     s.Away.Score,
		Period:        s.Period,
		TimeRemaining: s.TimeRemaining,
	}
}

// GameMeta is the display header of a game.
type GameMeta struct {
	GameID        string  `json:"game_id"`
	GameState     string  `json:"game_state,omitempty"`
	HomeTeam      string  `json:"home_team"`
	AwayTeam      string  `json:"away_team"`
	HomeScore     *int    `json:"home_score"`
	AwayScore     *int    `json:"away_score"`
	Period        *int    `json:"period"`
	TimeRemaining *string `json:"time_remaining"`
}

// LiveGame is a scoreboard entry.
type LiveGame struct {
	ID       int64  `json:"id"`
	State    string `json:"state"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
}

// IsLive reports whether the game is currently being played.
func (g LiveGame) IsLive() bool {
	return g.State == "LIVE" || g.State == "CRIT"
}

// ValidGameID reports whether id looks like a feed game id: up to 16 digits.
func ValidGameID(id string) bool {
	if id == "" || len(id) > 16 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
