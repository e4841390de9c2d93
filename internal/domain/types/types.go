// Package types contains response shapes shared by the API and the CLI.
package types

import (
	"github.com/okian/powerrank/internal/domain/model"
)

// StandingEntry is one row of a standings table.
type StandingEntry struct {
	TeamID       string  `json:"team_id"`
	ConferenceID *string `json:"conference_id,omitempty"`
	W            int     `json:"w"`
	L            int     `json:"l"`
	HW           int     `json:"hw"`
	HL           int     `json:"hl"`
	CCW          int     `json:"ccw"`
	CCL          int     `json:"ccl"`
	TeamPoints   int     `json:"team_points"`
	Streak       string  `json:"streak,omitempty"`
	ScoreFor     int     `json:"category_score_for"`
	PowerRating  float64 `json:"power_rating"`
	PowerRank    int     `json:"power_rank"`
	OverallRk    *int    `json:"overall_rank,omitempty"`
	ConferenceRk *int    `json:"conference_rank,omitempty"`
	WildcardRk   *int    `json:"wildcard_rank,omitempty"`
}

// PowerEntry is one team's power snapshot for a week.
type PowerEntry struct {
	Rank        int      `json:"rank"`
	TeamID      string   `json:"team_id"`
	PowerRating float64  `json:"power_rating"`
	Composite   float64  `json:"composite"`
	Elo         float64  `json:"elo"`
	EloDelta    float64  `json:"elo_delta"`
	PerfRaw     *float64 `json:"perf_raw,omitempty"`
	PerfEWMA    float64  `json:"perf_ewma"`
}

// FromStanding converts a stored standing row.
func FromStanding(s model.TeamSeasonStanding) StandingEntry {
	return StandingEntry{
		TeamID:       s.TeamID,
		ConferenceID: s.ConferenceID,
		W:            s.W,
		L:            s.L,
		HW:           s.HW,
		HL:           s.HL,
		CCW:          s.CCW,
		CCL:          s.CCL,
		TeamPoints:   s.TeamPoints(),
		Streak:       s.Streak,
		ScoreFor:     s.CategoryScoreFor,
		PowerRating:  s.PowerRating,
		PowerRank:    s.PowerRank,
		OverallRk:    s.OverallRk,
		ConferenceRk: s.ConferenceRk,
		WildcardRk:   s.WildcardRk,
	}
}

// FromSnapshot converts a stored power snapshot.
func FromSnapshot(p model.PowerWeekSnapshot) PowerEntry {
	return PowerEntry{
		Rank:        p.PowerRank,
		TeamID:      p.TeamID,
		PowerRating: p.PowerRating,
		Composite:   p.Composite,
		Elo:         p.EloPost,
		EloDelta:    p.EloDelta,
		PerfRaw:     p.PerfRaw,
		PerfEWMA:    p.PerfEWMA,
	}
}
