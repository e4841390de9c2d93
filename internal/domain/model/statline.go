package model

// GoaliePosition is the PlayerWeekStatLine position group counted for goalie starts.
const GoaliePosition = "G"

// TeamWeekStatLine is a team's aggregate category line for one week.
// A nil field is blank: it was not reported, which is not the same as zero.
type TeamWeekStatLine struct {
	TeamID   string `json:"team_id"`
	WeekID   string `json:"week_id"`
	SeasonID string `json:"season_id"`

	Goals     *float64 `json:"goals,omitempty"`
	Assists   *float64 `json:"assists,omitempty"`
	Points    *float64 `json:"points,omitempty"`
	PlusMinus *float64 `json:"plus_minus,omitempty"`
	PIM       *float64 `json:"pim,omitempty"`
	PPP       *float64 `json:"ppp,omitempty"`
	Shots     *float64 `json:"shots,omitempty"`
	Hits      *float64 `json:"hits,omitempty"`
	Blocks    *float64 `json:"blocks,omitempty"`
	Wins      *float64 `json:"wins,omitempty"`
	GAA       *float64 `json:"gaa,omitempty"`
	SavePct   *float64 `json:"save_pct,omitempty"`
	Shutouts  *float64 `json:"shutouts,omitempty"`

	// Rating is the externally computed overall rating for the week.
	Rating *float64 `json:"rating,omitempty"`
	// Talent is an optional roster-strength signal.
	Talent *float64 `json:"talent,omitempty"`
}

func (s TeamWeekStatLine) field(name string) (*float64, bool) {
	switch name {
	case CatGoals:
		return s.Goals, true
	case CatAssists:
		return s.Assists, true
	case CatPoints:
		return s.Points, true
	case CatPlusMinus:
		return s.PlusMinus, true
	case CatPIM:
		return s.PIM, true
	case CatPPP:
		return s.PPP, true
	case CatShots:
		return s.Shots, true
	case CatHits:
		return s.Hits, true
	case CatBlocks:
		return s.Blocks, true
	case CatWins:
		return s.Wins, true
	case CatGAA:
		return s.GAA, true
	case CatSavePct:
		return s.SavePct, true
	case CatShutouts:
		return s.Shutouts, true
	}
	return nil, false
}

// Value returns the category value and whether it was reported.
func (s *TeamWeekStatLine) Value(category string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, _ := s.field(category)
	if v == nil {
		return 0, false
	}
	return *v, true
}

// ValueOrZero returns the category value with blanks read as 0.
// Head-to-head category comparison relies on this; z-scoring uses Value instead.
func (s *TeamWeekStatLine) ValueOrZero(category string) float64 {
	v, _ := s.Value(category)
	return v
}

// PlayerWeekStatLine is the slice of a player's week this engine reads.
type PlayerWeekStatLine struct {
	TeamID        string `json:"team_id"`
	WeekID        string `json:"week_id"`
	SeasonID      string `json:"season_id"`
	PlayerID      string `json:"player_id"`
	PositionGroup string `json:"position_group"`
	GamesStarted  int    `json:"games_started"`
}

// TeamWeekKey identifies a (team, week) pair.
type TeamWeekKey struct {
	TeamID string
	WeekID string
}

// GoalieStarts sums goalie games started per team-week.
func GoalieStarts(lines []PlayerWeekStatLine) map[TeamWeekKey]int {
	out := make(map[TeamWeekKey]int)
	for _, l := range lines {
		if l.PositionGroup != GoaliePosition {
			continue
		}
		out[TeamWeekKey{TeamID: l.TeamID, WeekID: l.WeekID}] += l.GamesStarted
	}
	return out
}
