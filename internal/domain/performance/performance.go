// Package performance computes a weekly statistical performance score per
// team and smooths it with an exponentially weighted moving average.
package performance

import (
	"errors"
	"sort"

	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/internal/domain/zscore"
)

// Sentinel kinds for configuration errors.
var (
	ErrInvalidAlpha   = errors.New("ewma alpha must be within (0,1]")
	ErrInvalidWeights = errors.New("performance weights must be non-negative and not all zero")
)

// Weights blends the weekly signals into one raw score.
type Weights struct {
	Category float64
	Rating   float64
	Points   float64
	Margin   float64
	// Talent is optional. When positive the other weights are rescaled to
	// share what is left.
	Talent float64
}

// Effective returns the weights actually applied.
func (w Weights) Effective() Weights {
	if w.Talent <= 0 {
		w.Talent = 0
		return w
	}
	rest := w.Category + w.Rating + w.Points + w.Margin
	if rest <= 0 || w.Talent >= 1 {
		return Weights{Talent: 1}
	}
	scale := (1 - w.Talent) / rest
	return Weights{
		Category: w.Category * scale,
		Rating:   w.Rating * scale,
		Points:   w.Points * scale,
		Margin:   w.Margin * scale,
		Talent:   w.Talent,
	}
}

// Config holds the scoring parameters.
type Config struct {
	Alpha   float64
	Weights Weights
}

// DefaultConfig returns the league defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:   0.35,
		Weights: Weights{Category: 0.45, Rating: 0.35, Points: 0.1, Margin: 0.1},
	}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha > 1 {
		return ErrInvalidAlpha
	}
	w := c.Weights
	if w.Category < 0 || w.Rating < 0 || w.Points < 0 || w.Margin < 0 || w.Talent < 0 {
		return ErrInvalidWeights
	}
	if w.Category+w.Rating+w.Points+w.Margin+w.Talent == 0 {
		return ErrInvalidWeights
	}
	return nil
}

// Score is one team's performance for a week.
type Score struct {
	TeamID string
	// Raw is nil when the team had no stat line that week.
	Raw  *float64
	EWMA float64

	Category float64
	Rating   float64
	Points   float64
	Margin   float64
	Talent   float64
}

// Engine carries the smoothed score of every team across weeks.
type Engine struct {
	cfg        Config
	weights    Weights
	categories []model.Category
	ewma       map[string]float64
}

// NewEngine creates an engine over the given scoring categories.
func NewEngine(cfg Config, categories []model.Category) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		weights:    cfg.Weights.Effective(),
		categories: categories,
		ewma:       make(map[string]float64),
	}, nil
}

// Reset forgets every smoothed score.
func (e *Engine) Reset() {
	e.ewma = make(map[string]float64)
}

// EWMA returns the team's current smoothed score.
func (e *Engine) EWMA(teamID string) float64 {
	return e.ewma[teamID]
}

// ProcessWeek scores one week. lines maps team id to the week's stat line;
// matchups are the week's matchups. Every team in teamIDs gets a Score.
func (e *Engine) ProcessWeek(teamIDs []string, lines map[string]*model.TeamWeekStatLine, matchups []model.Matchup) map[string]Score {
	ids := append([]string(nil), teamIDs...)
	sort.Strings(ids)

	catZ := e.categoryScores(ids, lines)

	var rating, talent zscore.Population
	for _, id := range ids {
		l := lines[id]
		if l == nil {
			continue
		}
		if l.Rating != nil {
			rating.Add(id, *l.Rating)
		}
		if l.Talent != nil {
			talent.Add(id, *l.Talent)
		}
	}
	ratingZ := rating.Scores(false)
	talentZ := talent.Scores(false)
	pointsZ, marginZ := matchupScores(ids, matchups)

	out := make(map[string]Score, len(ids))
	for _, id := range ids {
		s := Score{
			TeamID:   id,
			Category: catZ[id],
			Rating:   ratingZ[id],
			Points:   pointsZ[id],
			Margin:   marginZ[id],
			Talent:   talentZ[id],
		}
		prev := e.ewma[id]
		if lines[id] == nil {
			s.EWMA = prev
			out[id] = s
			continue
		}
		w := e.weights
		raw := w.Category*s.Category + w.Rating*s.Rating + w.Points*s.Points + w.Margin*s.Margin + w.Talent*s.Talent
		s.Raw = model.FloatPtr(raw)
		s.EWMA = e.cfg.Alpha*raw + (1-e.cfg.Alpha)*prev
		e.ewma[id] = s.EWMA
		out[id] = s
	}
	return out
}

// categoryScores averages each team's directional z-scores over the
// categories it reported. Blank values stay out of the population.
func (e *Engine) categoryScores(ids []string, lines map[string]*model.TeamWeekStatLine) map[string]float64 {
	sum := make(map[string]float64, len(ids))
	n := make(map[string]int, len(ids))
	for _, c := range e.categories {
		var p zscore.Population
		for _, id := range ids {
			if v, ok := lines[id].Value(c.Name); ok {
				p.Add(id, v)
			}
		}
		for id, z := range p.Scores(c.LowerIsBetter) {
			sum[id] += z
			n[id]++
		}
	}
	out := make(map[string]float64, len(sum))
	for id, s := range sum {
		out[id] = s / float64(n[id])
	}
	return out
}

// matchupScores z-scores the week's matchup points and category margins.
func matchupScores(ids []string, matchups []model.Matchup) (points, margin map[string]float64) {
	pts := make(map[string]int)
	mar := make(map[string]int)
	hasPts := make(map[string]bool)
	hasMar := make(map[string]bool)
	for _, m := range matchups {
		if m.HomeScore == nil || m.AwayScore == nil {
			continue
		}
		hs, as := *m.HomeScore, *m.AwayScore
		mar[m.HomeTeamID] += hs - as
		mar[m.AwayTeamID] += as - hs
		hasMar[m.HomeTeamID], hasMar[m.AwayTeamID] = true, true
		if m.Decided() {
			pts[m.HomeTeamID] += model.Points(hs, as, *m.HomeWin)
			pts[m.AwayTeamID] += model.Points(as, hs, *m.AwayWin)
			hasPts[m.HomeTeamID], hasPts[m.AwayTeamID] = true, true
		}
	}
	var pp, mp zscore.Population
	for _, id := range ids {
		if hasPts[id] {
			pp.Add(id, float64(pts[id]))
		}
		if hasMar[id] {
			mp.Add(id, float64(mar[id]))
		}
	}
	return pp.Scores(false), mp.Scores(false)
}
