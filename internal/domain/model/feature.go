package model

// Strength is the relative skater state of the shooting situation.
type Strength string

const (
	StrengthEven        Strength = "EVEN"
	StrengthPowerPlay   Strength = "POWER_PLAY"
	StrengthShortHanded Strength = "SHORT_HANDED"
	StrengthUnknown     Strength = "UNKNOWN"
)

// EventType is the normalized kind of a qualifying play.
type EventType string

const (
	EventGoal EventType = "GOAL"
	EventShot EventType = "SHOT"
)

// TeamSide tells whether the shooting team plays at home.
type TeamSide string

const (
	SideHome TeamSide = "HOME"
	SideAway TeamSide = "AWAY"
)

// FeatureRow is one extracted shot/goal observation.
type FeatureRow struct {
	EventID       string    `json:"event_id"`
	Period        *int      `json:"period"`
	PeriodType    *string   `json:"period_type"`
	TimeRemaining *string   `json:"time_remaining"`
	Strength      Strength  `json:"strength"`
	EventType     EventType `json:"event_type"`
	TeamID        *int64    `json:"team_id"`
	TeamName      *string   `json:"team_name"`
	TeamAbbr      *string   `json:"team_abbr"`
	TeamSide      TeamSide  `json:"team_side"`
	IsHome        bool      `json:"is_home"`
	ShooterID     *int64    `json:"shooter_id"`
	ShooterName   *string   `json:"shooter_name"`
	GoalieID      *int64    `json:"goalie_id"`
	GoalieName    *string   `json:"goalie_name"`
	ShotType      *string   `json:"shot_type"`
	HomeTeam      *string   `json:"home_team"`
	AwayTeam      *string   `json:"away_team"`
	IsGoal        int       `json:"is_goal"`
	EmptyNet      int       `json:"empty_net"`
	Distance      *int      `json:"distance"`
	AngleFromNet  *float64  `json:"angle_from_net"`
}

// Feature names understood by the scoring gateway.
const (
	FeatureDistance     = "distance"
	FeatureAngleFromNet = "angle_from_net"
	FeatureEmptyNet     = "empty_net"
	FeatureIsHome       = "is_home"
	FeaturePeriod       = "period"
)

// Feature returns the numeric value of a named model feature. The second
// result is false for unsupported names; a supported feature can still be
// nil when the play carried no data for it.
func (r FeatureRow) Feature(name string) (*float64, bool) {
	switch name {
	case FeatureDistance:
		if r.Distance == nil {
			return nil, true
		}
		v := float64(*r.Distance)
		return &v, true
	case FeatureAngleFromNet:
		return r.AngleFromNet, true
	case FeatureEmptyNet:
		v := float64(r.EmptyNet)
		return &v, true
	case FeatureIsHome:
		v := 0.0
		if r.IsHome {
			v = 1
		}
		return &v, true
	case FeaturePeriod:
		if r.Period == nil {
			return nil, true
		}
		v := float64(*r.Period)
		return &v, true
	default:
		return nil, false
	}
}

// ScoredRow is a feature row joined with the model probability. GoalProb is
// nil when the row lacked a required feature and was not sent to the model.
type ScoredRow struct {
	FeatureRow
	GoalProb *float64 `json:"goal_prob"`
}

// Batch is the result of one poll.
type Batch struct {
	PollID    string      `json:"poll_id"`
	GameID    string      `json:"game_id"`
	Model     string      `json:"model,omitempty"`
	NewEvents int         `json:"new_events"`
	Rows      []ScoredRow `json:"rows"`
	Meta      GameMeta    `json:"meta"`
}
