// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// WeekType classifies a week of the season.
type WeekType string

// Week types. The value doubles as the season segment name.
const (
	RegularSeason    WeekType = "REGULAR_SEASON"
	Playoffs         WeekType = "PLAYOFFS"
	LosersTournament WeekType = "LOSERS_TOURNAMENT"
)

// Segment is the part of a season standings are accumulated for.
type Segment = WeekType

// ParseSegment accepts a segment name in any case, with "-" or "_" separators.
// An empty string parses to "" with ok=true and means "every segment".
func ParseSegment(s string) (Segment, bool) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch Segment(norm) {
	case "":
		return "", true
	case RegularSeason, Playoffs, LosersTournament:
		return Segment(norm), true
	}
	return "", false
}

// WeekStatus is derived from a week's dates relative to a clock.
type WeekStatus int

// Week statuses.
const (
	WeekUpcoming WeekStatus = iota
	WeekActive
	WeekComplete
)

func (s WeekStatus) String() string {
	switch s {
	case WeekActive:
		return "active"
	case WeekComplete:
		return "complete"
	default:
		return "upcoming"
	}
}

// Team is a fantasy team registered for one season.
type Team struct {
	ID           string  `json:"id"`
	SeasonID     string  `json:"season_id"`
	ConferenceID *string `json:"conference_id,omitempty"`
}

// Conference returns the team's conference id, or "" when it has none.
func (t Team) Conference() string {
	if t.ConferenceID == nil {
		return ""
	}
	return *t.ConferenceID
}

// Week is a scoring period. Order is the strict chronological key.
type Week struct {
	ID       string    `json:"id"`
	SeasonID string    `json:"season_id"`
	Type     WeekType  `json:"type"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Order    int       `json:"order"`
}

// Status reports whether the week is upcoming, active or complete at now.
// Start and End are calendar days whose boundaries fall in now's location,
// so a week ends at midnight after End wherever the league keeps time.
func (w Week) Status(now time.Time) WeekStatus {
	loc := now.Location()
	if now.Before(startOfDay(w.Start, loc)) {
		return WeekUpcoming
	}
	if now.Before(startOfDay(w.End, loc).AddDate(0, 0, 1)) {
		return WeekActive
	}
	return WeekComplete
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Matchup is a head-to-head pairing for one week. Scores are category-win counts.
type Matchup struct {
	ID           string `json:"id"`
	SeasonID     string `json:"season_id"`
	WeekID       string `json:"week_id"`
	HomeTeamID   string `json:"home_team_id"`
	AwayTeamID   string `json:"away_team_id"`
	HomeScore    *int   `json:"home_score,omitempty"`
	AwayScore    *int   `json:"away_score,omitempty"`
	HomeWin      *bool  `json:"home_win,omitempty"`
	AwayWin      *bool  `json:"away_win,omitempty"`
	Tie          *bool  `json:"tie,omitempty"`
	PlayoffRound *int   `json:"playoff_round,omitempty"`
	Complete     bool   `json:"complete"`
	HomeRank     *int   `json:"home_rank,omitempty"`
	AwayRank     *int   `json:"away_rank,omitempty"`
}

// Decided reports whether both scores and the outcome flags are present.
func (m Matchup) Decided() bool {
	return m.HomeScore != nil && m.AwayScore != nil && m.HomeWin != nil && m.AwayWin != nil && m.Tie != nil
}

// Involves reports whether teamID plays in the matchup.
func (m Matchup) Involves(teamID string) bool {
	return m.HomeTeamID == teamID || m.AwayTeamID == teamID
}

// Opponent returns the other side of the matchup for teamID.
func (m Matchup) Opponent(teamID string) string {
	if m.HomeTeamID == teamID {
		return m.AwayTeamID
	}
	return m.HomeTeamID
}

// Side returns the scores and win flag from teamID's point of view.
// ok is false when the matchup is not decided or teamID does not play.
func (m Matchup) Side(teamID string) (own, opp int, won, ok bool) {
	if !m.Decided() || !m.Involves(teamID) {
		return 0, 0, false, false
	}
	if m.HomeTeamID == teamID {
		return *m.HomeScore, *m.AwayScore, *m.HomeWin, true
	}
	return *m.AwayScore, *m.HomeScore, *m.AwayWin, true
}

// Points returns the 3/2/1/0 matchup points for a side: clean win, tie-break
// win, tie-break loss, clean loss. A tie-break is a level category score.
func Points(own, opp int, won bool) int {
	switch {
	case won && own != opp:
		return 3
	case won:
		return 2
	case own == opp:
		return 1
	default:
		return 0
	}
}

// SeasonData is every input record of one season, loaded up front.
type SeasonData struct {
	SeasonID    string               `json:"season_id"`
	Teams       []Team               `json:"teams"`
	Weeks       []Week               `json:"weeks"`
	Matchups    []Matchup            `json:"matchups"`
	TeamStats   []TeamWeekStatLine   `json:"team_stats"`
	PlayerStats []PlayerWeekStatLine `json:"player_stats"`
}

// Empty reports whether there is nothing to rank.
func (d *SeasonData) Empty() bool {
	return d == nil || len(d.Teams) == 0 || len(d.Weeks) == 0
}

// IntPtr, BoolPtr, FloatPtr and StringPtr are helpers for optional fields.
func IntPtr(v int) *int           { return &v }
func BoolPtr(v bool) *bool        { return &v }
func FloatPtr(v float64) *float64 { return &v }
func StringPtr(v string) *string  { return &v }
