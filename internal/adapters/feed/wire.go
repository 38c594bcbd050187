package feed

import (
	"strconv"

	"github.com/okian/icexg/internal/domain/model"
)

// Wire types mirror the feed JSON. Every optional field is a pointer so
// absence maps to nil instead of a zero value.

type localized struct {
	Default string `json:"default"`
}

type wireTeam struct {
	ID         int64      `json:"id"`
	CommonName localized  `json:"commonName"`
	Name       *localized `json:"name"`
	Abbrev     string     `json:"abbrev"`
	Score      *int       `json:"score"`
}

func (t wireTeam) displayName() string {
	if t.CommonName.Default != "" {
		return t.CommonName.Default
	}
	if t.Name != nil {
		return t.Name.Default
	}
	return t.Abbrev
}

type wirePeriod struct {
	Number     *int    `json:"number"`
	PeriodType *string `json:"periodType"`
}

type wireDetails struct {
	EventOwnerTeamID *int64   `json:"eventOwnerTeamId"`
	ScoringPlayerID  *int64   `json:"scoringPlayerId"`
	ShootingPlayerID *int64   `json:"shootingPlayerId"`
	GoalieInNetID    *int64   `json:"goalieInNetId"`
	ShotType         *string  `json:"shotType"`
	XCoord           *float64 `json:"xCoord"`
	YCoord           *float64 `json:"yCoord"`
}

type wirePlay struct {
	EventID          *int64       `json:"eventId"`
	TypeDescKey      string       `json:"typeDescKey"`
	PeriodDescriptor wirePeriod   `json:"periodDescriptor"`
	TimeRemaining    *string      `json:"timeRemaining"`
	SituationCode    *string      `json:"situationCode"`
	Details          *wireDetails `json:"details"`
}

type wireRosterSpot struct {
	PlayerID  int64     `json:"playerId"`
	FirstName localized `json:"firstName"`
	LastName  localized `json:"lastName"`
}

type wireClock struct {
	TimeRemaining *string `json:"timeRemaining"`
}

type playByPlayResponse struct {
	ID               int64            `json:"id"`
	GameState        string           `json:"gameState"`
	HomeTeam         wireTeam         `json:"homeTeam"`
	AwayTeam         wireTeam         `json:"awayTeam"`
	PeriodDescriptor wirePeriod       `json:"periodDescriptor"`
	Clock            *wireClock       `json:"clock"`
	RosterSpots      []wireRosterSpot `json:"rosterSpots"`
	Plays            []wirePlay       `json:"plays"`
}

type wireScoreboardGame struct {
	ID        int64    `json:"id"`
	GameState string   `json:"gameState"`
	HomeTeam  wireTeam `json:"homeTeam"`
	AwayTeam  wireTeam `json:"awayTeam"`
}

type scoreboardResponse struct {
	GamesByDate []struct {
		Date  string               `json:"date"`
		Games []wireScoreboardGame `json:"games"`
	} `json:"gamesByDate"`
}

func mapTeam(t wireTeam) model.Team {
	return model.Team{ID: t.ID, Name: t.displayName(), Abbrev: t.Abbrev, Score: t.Score}
}

func mapPlay(i int, p wirePlay) model.RawPlayEvent {
	e := model.RawPlayEvent{
		EventID:       p.EventID,
		Index:         i,
		TypeKey:       p.TypeDescKey,
		Period:        p.PeriodDescriptor.Number,
		PeriodType:    p.PeriodDescriptor.PeriodType,
		TimeRemaining: p.TimeRemaining,
		SituationCode: p.SituationCode,
	}
	if d := p.Details; d != nil {
		e.TeamID = d.EventOwnerTeamID
		e.ScoringPlayerID = d.ScoringPlayerID
		e.ShootingPlayerID = d.ShootingPlayerID
		e.GoalieInNetID = d.GoalieInNetID
		e.ShotType = d.ShotType
		e.X = d.XCoord
		e.Y = d.YCoord
	}
	return e
}

func mapSnapshot(gameID string, r playByPlayResponse) model.GameSnapshot {
	snap := model.GameSnapshot{
		GameID:     gameID,
		GameState:  r.GameState,
		Home:       mapTeam(r.HomeTeam),
		Away:       mapTeam(r.AwayTeam),
		Period:     r.PeriodDescriptor.Number,
		PeriodType: r.PeriodDescriptor.PeriodType,
		Roster:     make([]model.Player, 0, len(r.RosterSpots)),
		Plays:      make([]model.RawPlayEvent, len(r.Plays)),
	}
	if snap.GameID == "" && r.ID != 0 {
		snap.GameID = strconv.FormatInt(r.ID, 10)
	}
	if r.Clock != nil {
		snap.TimeRemaining = r.Clock.TimeRemaining
	}
	for _, s := range r.RosterSpots {
		snap.Roster = append(snap.Roster, model.Player{
			ID:        s.PlayerID,
			FirstName: s.FirstName.Default,
			LastName:  s.LastName.Default,
		})
	}
	for i, p := range r.Plays {
		snap.Plays[i] = mapPlay(i, p)
	}
	return snap
}

func mapLiveGames(r scoreboardResponse) []model.LiveGame {
	var out []model.LiveGame
	seen := make(map[int64]struct{})
	for _, day := range r.GamesByDate {
		for _, g := range day.Games {
			if _, ok := seen[g.ID]; ok {
				continue
			}
			seen[g.ID] = struct{}{}
			out = append(out, model.LiveGame{
				ID:       g.ID,
				State:    g.GameState,
				HomeTeam: g.HomeTeam.displayName(),
				AwayTeam: g.AwayTeam.displayName(),
			})
		}
	}
	return out
}
