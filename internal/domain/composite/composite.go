// Package composite blends Elo and performance signals into a weekly power
// rating and rank.
package composite

import (
	"errors"
	"sort"

	"github.com/okian/powerrank/internal/domain/zscore"
)

// Default composite configuration constants.
const (
	defaultEloWeight  = 0.7
	defaultStatWeight = 0.3
	maxPowerRating    = 100
	flatPowerRating   = 50
)

// ErrInvalidWeights is returned for negative or all-zero weights.
var ErrInvalidWeights = errors.New("composite weights must be non-negative and not all zero")

// Config holds the blend weights.
type Config struct {
	EloWeight  float64
	StatWeight float64
}

// DefaultConfig returns the league defaults.
func DefaultConfig() Config {
	return Config{EloWeight: defaultEloWeight, StatWeight: defaultStatWeight}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.EloWeight < 0 || c.StatWeight < 0 || c.EloWeight+c.StatWeight == 0 {
		return ErrInvalidWeights
	}
	return nil
}

// Input is one team's signals for the week.
type Input struct {
	TeamID   string
	Elo      float64
	PerfEWMA float64
}

// Entry is one team's composite result for the week.
type Entry struct {
	TeamID      string
	EloZ        float64
	Composite   float64
	PowerRating float64
	Rank        int
}

// Ranker ranks one week at a time.
type Ranker struct {
	cfg Config
}

// NewRanker creates a Ranker.
func NewRanker(cfg Config) (*Ranker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ranker{cfg: cfg}, nil
}

// Rank computes composite scores, 0–100 power ratings and ranks for the
// week. Entries come back best first; equal composites order by team id.
func (r *Ranker) Rank(in []Input) []Entry {
	if len(in) == 0 {
		return nil
	}
	elos := make(map[string]float64, len(in))
	for _, i := range in {
		elos[i.TeamID] = i.Elo
	}
	eloZ := zscore.Of(elos)

	out := make([]Entry, len(in))
	lo, hi := 0.0, 0.0
	for idx, i := range in {
		c := r.cfg.EloWeight*eloZ[i.TeamID] + r.cfg.StatWeight*i.PerfEWMA
		out[idx] = Entry{TeamID: i.TeamID, EloZ: eloZ[i.TeamID], Composite: c}
		if idx == 0 || c < lo {
			lo = c
		}
		if idx == 0 || c > hi {
			hi = c
		}
	}
	for idx := range out {
		if hi == lo {
			out[idx].PowerRating = flatPowerRating
			continue
		}
		out[idx].PowerRating = maxPowerRating * (out[idx].Composite - lo) / (hi - lo)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Composite != out[b].Composite {
			return out[a].Composite > out[b].Composite
		}
		return out[a].TeamID < out[b].TeamID
	})
	for idx := range out {
		out[idx].Rank = idx + 1
	}
	return out
}
