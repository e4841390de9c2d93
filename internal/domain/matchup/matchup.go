// Package matchup scores head-to-head matchups category by category.
package matchup

import (
	"github.com/okian/powerrank/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultGoalieStartsThreshold = 2
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithCategories sets the scoring categories.
func WithCategories(cats []model.Category) Option {
	return func(s *Scorer) {
		if len(cats) > 0 {
			s.categories = append([]model.Category(nil), cats...)
		}
	}
}

// WithGoalieStartsThreshold sets the minimum goalie starts that award a
// goalie-only category outright.
func WithGoalieStartsThreshold(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.goalieThreshold = n
		}
	}
}

// Side is one team's input to a matchup.
type Side struct {
	Stats        *model.TeamWeekStatLine
	GoalieStarts int
}

// Result is the category tally of a matchup.
type Result struct {
	HomeScore int
	AwayScore int
	// Categories maps category name to the winner: 1 home, -1 away, 0 level.
	Categories map[string]int
}

// Scorer compares two weekly stat lines category by category.
type Scorer struct {
	categories      []model.Category
	goalieThreshold int
}

// New creates a Scorer with the default categories unless overridden.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		categories:      model.DefaultCategories(),
		goalieThreshold: defaultGoalieStartsThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Categories returns the configured categories.
func (s *Scorer) Categories() []model.Category {
	return s.categories
}

// Compare tallies category wins for home and away.
func (s *Scorer) Compare(home, away Side) Result {
	res := Result{Categories: make(map[string]int, len(s.categories))}
	for _, c := range s.categories {
		w := s.winner(c, home, away)
		switch w {
		case 1:
			res.HomeScore++
		case -1:
			res.AwayScore++
		}
		res.Categories[c.Name] = w
	}
	return res
}

func (s *Scorer) winner(c model.Category, home, away Side) int {
	if c.GoalieOnly {
		hq := home.GoalieStarts >= s.goalieThreshold
		aq := away.GoalieStarts >= s.goalieThreshold
		if hq && !aq {
			return 1
		}
		if aq && !hq {
			return -1
		}
	}
	hv := home.Stats.ValueOrZero(c.Name)
	av := away.Stats.ValueOrZero(c.Name)
	if hv == av {
		return 0
	}
	better := hv > av
	if c.LowerIsBetter {
		better = !better
	}
	if better {
		return 1
	}
	return -1
}

// Apply scores m in place according to the owning week's status.
// Upcoming weeks are left alone. Active weeks refresh the scores only, so
// outcome flags from an earlier run do not flap mid-week. Complete weeks
// also settle the outcome: a level score still goes to the home side.
// It reports whether m was touched.
func (s *Scorer) Apply(m *model.Matchup, status model.WeekStatus, home, away Side) bool {
	if status == model.WeekUpcoming {
		return false
	}
	res := s.Compare(home, away)
	m.HomeScore = model.IntPtr(res.HomeScore)
	m.AwayScore = model.IntPtr(res.AwayScore)
	if status != model.WeekComplete {
		return true
	}
	homeWin := res.HomeScore >= res.AwayScore
	m.HomeWin = model.BoolPtr(homeWin)
	m.AwayWin = model.BoolPtr(!homeWin)
	m.Tie = model.BoolPtr(false)
	m.Complete = true
	return true
}
