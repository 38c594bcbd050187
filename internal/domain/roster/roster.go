// Package roster resolves player and team ids found in plays to display names.
package roster

import (
	"strings"

	"github.com/okian/icexg/internal/domain/model"
)

// TeamInfo is the display form of a team.
type TeamInfo struct {
	Name   string
	Abbrev string
}

// Roster holds the lookup tables for one game snapshot. The zero value is
// an empty roster where every lookup misses.
type Roster struct {
	players map[int64]string
	teams   map[int64]TeamInfo
}

// Resolve builds the lookup tables from a snapshot.
func Resolve(snap model.GameSnapshot) Roster {
	r := Roster{
		players: make(map[int64]string, len(snap.Roster)),
		teams:   make(map[int64]TeamInfo, 2),
	}
	for _, p := range snap.Roster {
		r.players[p.ID] = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	for _, t := range []model.Team{snap.Home, snap.Away} {
		if t.ID == 0 {
			continue
		}
		r.teams[t.ID] = TeamInfo{Name: t.Name, Abbrev: t.Abbrev}
	}
	return r
}

// PlayerName returns the full name of a player, or nil when id is nil or
// not on the roster.
func (r Roster) PlayerName(id *int64) *string {
	if id == nil {
		return nil
	}
	name, ok := r.players[*id]
	if !ok {
		return nil
	}
	return &name
}

// Team returns the team registered under id.
func (r Roster) Team(id *int64) (TeamInfo, bool) {
	if id == nil {
		return TeamInfo{}, false
	}
	t, ok := r.teams[*id]
	return t, ok
}
