// Package elo maintains pairwise Elo-style team ratings, folded week by week.
//
// Ratings are seeded at the start of a season run and updated from each
// decided matchup. The home side receives delta = K·(actual − expected) and
// the away side receives −delta, so every matchup is zero-sum.
package elo

import (
	"errors"
	"math"
	"sort"

	"github.com/okian/powerrank/internal/domain/model"
)

// Sentinel kinds for configuration errors.
var (
	ErrInvalidScale  = errors.New("rating scale must be positive")
	ErrInvalidK      = errors.New("k-factor must be positive")
	ErrInvalidBlend  = errors.New("actual-score blend must be within [0,1]")
	ErrInvalidRating = errors.New("base rating must be finite")
)

// Config holds the rating parameters.
type Config struct {
	BaseRating  float64
	Scale       float64
	BaseK       float64
	MarginK     float64
	ActualBlend float64 // weight of the margin score; the rest goes to the points score

	RegularMultiplier float64
	LosersMultiplier  float64
	PlayoffBase       float64
	PlayoffRoundStep  float64
}

// DefaultConfig returns the league defaults.
func DefaultConfig() Config {
	return Config{
		BaseRating:        1500,
		Scale:             400,
		BaseK:             20,
		MarginK:           0.5,
		ActualBlend:       0.8,
		RegularMultiplier: 1,
		LosersMultiplier:  0.5,
		PlayoffBase:       1.5,
		PlayoffRoundStep:  0.25,
	}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	switch {
	case math.IsNaN(c.BaseRating) || math.IsInf(c.BaseRating, 0):
		return ErrInvalidRating
	case c.Scale <= 0:
		return ErrInvalidScale
	case c.BaseK <= 0:
		return ErrInvalidK
	case c.ActualBlend < 0 || c.ActualBlend > 1:
		return ErrInvalidBlend
	}
	return nil
}

// Update is one team's rating movement over a week.
type Update struct {
	TeamID   string
	Pre      float64
	Post     float64
	Delta    float64
	Expected *float64
	K        *float64
	Matchups int
}

// WeekResult is the outcome of folding one week.
type WeekResult struct {
	Updates map[string]Update
	// MultiMatchup lists teams that played more than once in the week.
	MultiMatchup []string
	// Unknown lists teams that were not seeded before the week.
	Unknown []string
}

// Engine holds one rating per team.
type Engine struct {
	cfg           Config
	categoryCount int
	ratings       map[string]float64
}

// NewEngine creates an engine. categoryCount is the number of scoring
// categories a matchup is played over.
func NewEngine(cfg Config, categoryCount int) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:           cfg,
		categoryCount: categoryCount,
		ratings:       make(map[string]float64),
	}, nil
}

// Seed resets every given team to the base rating.
func (e *Engine) Seed(teamIDs []string) {
	e.ratings = make(map[string]float64, len(teamIDs))
	for _, id := range teamIDs {
		e.ratings[id] = e.cfg.BaseRating
	}
}

// Rating returns the team's current rating.
func (e *Engine) Rating(teamID string) float64 {
	if r, ok := e.ratings[teamID]; ok {
		return r
	}
	return e.cfg.BaseRating
}

// Ratings returns a copy of the current ratings.
func (e *Engine) Ratings() map[string]float64 {
	out := make(map[string]float64, len(e.ratings))
	for k, v := range e.ratings {
		out[k] = v
	}
	return out
}

// Expected is the logistic expected score of own against opp.
func (e *Engine) Expected(own, opp float64) float64 {
	return 1 / (1 + math.Pow(10, (opp-own)/e.cfg.Scale))
}

func (e *Engine) categories(own, opp int) int {
	if e.categoryCount > 0 {
		return e.categoryCount
	}
	return own + opp
}

// ActualScore blends a margin score and a points score into [0,1].
func (e *Engine) ActualScore(own, opp int, won bool) float64 {
	margin := 0.5
	if n := e.categories(own, opp); n > 0 {
		margin = 0.5 + float64(own-opp)/(2*float64(n))
	}
	margin = math.Max(0, math.Min(1, margin))
	points := float64(model.Points(own, opp, won)) / 3
	return e.cfg.ActualBlend*margin + (1-e.cfg.ActualBlend)*points
}

// KFactor scales the base K by the score margin and the week multiplier.
func (e *Engine) KFactor(own, opp int, multiplier float64) float64 {
	k := e.cfg.BaseK
	if n := e.categories(own, opp); n > 0 {
		k *= 1 + e.cfg.MarginK*math.Abs(float64(own-opp))/float64(n)
	}
	return k * multiplier
}

// WeekMultiplier returns the K multiplier for a week type. round is the
// 1-based playoff round and is ignored outside the playoffs.
func (e *Engine) WeekMultiplier(t model.WeekType, round int) float64 {
	switch t {
	case model.Playoffs:
		if round < 1 {
			round = 1
		}
		return e.cfg.PlayoffBase + e.cfg.PlayoffRoundStep*float64(round-1)
	case model.LosersTournament:
		return e.cfg.LosersMultiplier
	default:
		return e.cfg.RegularMultiplier
	}
}

// ProcessWeek folds the decided matchups of one week into the ratings.
// Every delta of the week is computed from the ratings entering the week.
// A matchup of a team against itself is ignored.
// weekRound is the playoff round used when a matchup carries none.
func (e *Engine) ProcessWeek(week model.Week, weekRound int, matchups []model.Matchup) WeekResult {
	res := WeekResult{Updates: make(map[string]Update, len(e.ratings))}
	for id, r := range e.ratings {
		res.Updates[id] = Update{TeamID: id, Pre: r, Post: r}
	}

	ordered := append([]model.Matchup(nil), matchups...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, m := range ordered {
		if !m.Decided() || m.HomeTeamID == m.AwayTeamID {
			continue
		}
		for _, id := range []string{m.HomeTeamID, m.AwayTeamID} {
			if _, ok := res.Updates[id]; !ok {
				r := e.Rating(id)
				res.Updates[id] = Update{TeamID: id, Pre: r, Post: r}
				res.Unknown = append(res.Unknown, id)
			}
		}
		home := res.Updates[m.HomeTeamID]
		away := res.Updates[m.AwayTeamID]

		round := weekRound
		if m.PlayoffRound != nil {
			round = *m.PlayoffRound
		}
		mult := e.WeekMultiplier(week.Type, round)

		actual := e.ActualScore(*m.HomeScore, *m.AwayScore, *m.HomeWin)
		expHome := e.Expected(home.Pre, away.Pre)
		k := e.KFactor(*m.HomeScore, *m.AwayScore, mult)
		delta := k * (actual - expHome)

		home.Delta += delta
		home.Expected = model.FloatPtr(expHome)
		home.K = model.FloatPtr(k)
		home.Matchups++
		away.Delta -= delta
		away.Expected = model.FloatPtr(1 - expHome)
		away.K = model.FloatPtr(k)
		away.Matchups++

		res.Updates[m.HomeTeamID] = home
		res.Updates[m.AwayTeamID] = away
	}

	for id, u := range res.Updates {
		u.Post = u.Pre + u.Delta
		res.Updates[id] = u
		e.ratings[id] = u.Post
		if u.Matchups > 1 {
			res.MultiMatchup = append(res.MultiMatchup, id)
		}
	}
	sort.Strings(res.MultiMatchup)
	sort.Strings(res.Unknown)
	return res
}
