// Package features turns raw plays into the shot/goal feature rows fed to the
// scoring model.
package features

import (
	"github.com/okian/icexg/internal/domain/geometry"
	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/roster"
	"github.com/okian/icexg/internal/domain/strength"
)

// EventType maps a feed type key to the normalized event type. The second
// result is false for plays that never produce a row.
func EventType(typeKey string) (model.EventType, bool) {
	switch typeKey {
	case model.TypeKeyGoal:
		return model.EventGoal, true
	case model.TypeKeyShotOnGoal:
		return model.EventShot, true
	default:
		return "", false
	}
}

// Qualifies reports whether the play yields a feature row.
func Qualifies(e model.RawPlayEvent) bool {
	_, ok := EventType(e.TypeKey)
	return ok
}

// Extract builds one row per goal or shot on goal in events, in input
// order. Names are resolved against snap; events are not modified.
func Extract(events []model.RawPlayEvent, snap model.GameSnapshot) []model.FeatureRow {
	r := roster.Resolve(snap)
	homeID, awayID := snap.Home.ID, snap.Away.ID
	homeName := teamName(r, homeID)
	awayName := teamName(r, awayID)

	rows := make([]model.FeatureRow, 0, len(events))
	for _, e := range events {
		et, ok := EventType(e.TypeKey)
		if !ok {
			continue
		}
		rows = append(rows, build(e, et, r, homeID, homeName, awayName))
	}
	return rows
}

func build(e model.RawPlayEvent, et model.EventType, r roster.Roster, homeID int64, homeName, awayName *string) model.FeatureRow {
	shooter := e.ShootingPlayerID
	if et == model.EventGoal && e.ScoringPlayerID != nil {
		shooter = e.ScoringPlayerID
	}

	side := model.SideAway
	if e.TeamID != nil && *e.TeamID == homeID {
		side = model.SideHome
	}

	row := model.FeatureRow{
		EventID:       e.Key(),
		Period:        e.Period,
		PeriodType:    e.PeriodType,
		TimeRemaining: e.TimeRemaining,
		Strength:      strength.DecodePtr(e.SituationCode),
		EventType:     et,
		TeamID:        e.TeamID,
		TeamSide:      side,
		IsHome:        side == model.SideHome,
		ShooterID:     shooter,
		ShooterName:   r.PlayerName(shooter),
		GoalieID:      e.GoalieInNetID,
		GoalieName:    r.PlayerName(e.GoalieInNetID),
		ShotType:      e.ShotType,
		HomeTeam:      homeName,
		AwayTeam:      awayName,
	}
	if team, ok := r.Team(e.TeamID); ok {
		row.TeamName = &team.Name
		row.TeamAbbr = &team.Abbrev
	}
	if et == model.EventGoal {
		row.IsGoal = 1
	}
	if e.GoalieInNetID == nil || *e.GoalieInNetID == model.NoGoalie {
		row.EmptyNet = 1
	}
	row.Distance, row.AngleFromNet = geometry.Compute(e.X, e.Y)
	return row
}

func teamName(r roster.Roster, id int64) *string {
	t, ok := r.Team(&id)
	if !ok {
		return nil
	}
	return &t.Name
}
