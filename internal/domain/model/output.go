package model

// PowerWeekSnapshot is the computed rating state of a team after one week.
type PowerWeekSnapshot struct {
	TeamID   string  `json:"team_id"`
	WeekID   string  `json:"week_id"`
	SeasonID string  `json:"season_id"`
	Segment  Segment `json:"segment"`

	EloPre   float64  `json:"elo_pre"`
	EloPost  float64  `json:"elo_post"`
	EloDelta float64  `json:"elo_delta"`
	Expected *float64 `json:"expected,omitempty"`
	K        *float64 `json:"k,omitempty"`

	PerfRaw  *float64 `json:"perf_raw,omitempty"`
	PerfEWMA float64  `json:"perf_ewma"`

	Composite   float64 `json:"composite"`
	PowerRating float64 `json:"power_rating"`
	PowerRank   int     `json:"power_rank"`
}

// Key returns the natural key of the snapshot.
func (p PowerWeekSnapshot) Key() TeamWeekKey {
	return TeamWeekKey{TeamID: p.TeamID, WeekID: p.WeekID}
}

// StandingKey identifies a TeamSeasonStanding.
type StandingKey struct {
	TeamID   string
	SeasonID string
	Segment  Segment
}

// TeamSeasonStanding is a team's accumulated record for one season segment.
type TeamSeasonStanding struct {
	TeamID       string  `json:"team_id"`
	SeasonID     string  `json:"season_id"`
	Segment      Segment `json:"segment"`
	ConferenceID *string `json:"conference_id,omitempty"`

	W  int `json:"w"`
	HW int `json:"hw"`
	HL int `json:"hl"`
	L  int `json:"l"`

	CCW  int `json:"ccw"`
	CCHW int `json:"cchw"`
	CCHL int `json:"cchl"`
	CCL  int `json:"ccl"`

	Streak           string `json:"streak"`
	CategoryScoreFor int    `json:"category_score_for"`

	// Power fields copied from the segment's last week snapshot.
	LastWeekID  string  `json:"last_week_id"`
	EloPost     float64 `json:"elo_post"`
	PerfEWMA    float64 `json:"perf_ewma"`
	Composite   float64 `json:"composite"`
	PowerRating float64 `json:"power_rating"`
	PowerRank   int     `json:"power_rank"`

	OverallRk    *int `json:"overall_rk,omitempty"`
	ConferenceRk *int `json:"conference_rk,omitempty"`
	WildcardRk   *int `json:"wildcard_rk,omitempty"`
}

// Key returns the natural key of the standing.
func (s TeamSeasonStanding) Key() StandingKey {
	return StandingKey{TeamID: s.TeamID, SeasonID: s.SeasonID, Segment: s.Segment}
}

// TeamPoints is (W−HW)×3 + HW×2 + HL×1.
func (s TeamSeasonStanding) TeamPoints() int {
	return TeamPoints(s.W, s.HW, s.HL)
}

// TeamPoints scores a record: clean win 3, tie-break win 2, tie-break loss 1, loss 0.
func TeamPoints(w, hw, hl int) int {
	return (w-hw)*3 + hw*2 + hl
}
