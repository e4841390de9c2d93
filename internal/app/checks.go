package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/pkg/metrics"
)

// Check statuses.
const (
	CheckOK    = "ok"
	CheckError = "error"
)

const zeroSumTolerance = 1e-6

// Check validates one property of a computed run.
type Check struct {
	Name string
	Fn   func(ctx context.Context, out *Output) error
}

// CheckResult is the structured outcome of one check.
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DefaultChecks returns the checks run after every computation.
func DefaultChecks() []Check {
	return []Check{
		{Name: "elo_zero_sum", Fn: checkZeroSum},
		{Name: "matchup_flags", Fn: checkMatchupFlags},
		{Name: "power_ranks", Fn: checkPowerRanks},
		{Name: "standings_ranks", Fn: checkStandingsRanks},
		{Name: "wildcard_pool", Fn: checkWildcardPool},
	}
}

// RunChecks runs every check against out. A check that fails or panics
// yields an error result and the remaining checks still run.
func RunChecks(ctx context.Context, out *Output, checks []Check) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		res := runCheck(ctx, c, out)
		metrics.RecordCheck(c.Name, res.Status)
		results = append(results, res)
	}
	return results
}

func runCheck(ctx context.Context, c Check, out *Output) (res CheckResult) {
	res = CheckResult{Name: c.Name, Status: CheckOK}
	defer func() {
		if p := recover(); p != nil {
			res.Status = CheckError
			res.Message = fmt.Sprintf("panic: %v", p)
		}
	}()
	if err := c.Fn(ctx, out); err != nil {
		res.Status = CheckError
		res.Message = err.Error()
	}
	return res
}

// Check computes a season without writing and runs the default checks.
func (r *Runner) Check(ctx context.Context, seasonID string) ([]CheckResult, error) {
	out, err := r.Compute(ctx, seasonID, "")
	if err != nil {
		return nil, err
	}
	return RunChecks(ctx, out, DefaultChecks()), nil
}

func checkZeroSum(_ context.Context, out *Output) error {
	sums := make(map[string]float64)
	var weeks []string
	for _, s := range out.Snapshots {
		if _, ok := sums[s.WeekID]; !ok {
			weeks = append(weeks, s.WeekID)
		}
		sums[s.WeekID] += s.EloDelta
	}
	var errs []error
	for _, w := range weeks {
		if math.Abs(sums[w]) > zeroSumTolerance {
			errs = append(errs, fmt.Errorf("week %s: elo deltas sum to %g", w, sums[w]))
		}
	}
	return errors.Join(errs...)
}

func checkMatchupFlags(_ context.Context, out *Output) error {
	var errs []error
	for _, m := range out.Matchups {
		if !m.Complete {
			continue
		}
		if !m.Decided() {
			errs = append(errs, fmt.Errorf("matchup %s: complete but undecided", m.ID))
			continue
		}
		if *m.HomeWin == *m.AwayWin {
			errs = append(errs, fmt.Errorf("matchup %s: home_win and away_win agree", m.ID))
			continue
		}
		if *m.HomeWin != (*m.HomeScore >= *m.AwayScore) {
			errs = append(errs, fmt.Errorf("matchup %s: %d-%d does not match home_win=%t", m.ID, *m.HomeScore, *m.AwayScore, *m.HomeWin))
		}
	}
	return errors.Join(errs...)
}

// dense reports an error unless ranks is exactly 1..len(ranks).
func dense(scope string, ranks []int) error {
	sorted := append([]int(nil), ranks...)
	sort.Ints(sorted)
	for i, rk := range sorted {
		if rk != i+1 {
			return fmt.Errorf("%s: ranks %v are not 1..%d", scope, sorted, len(sorted))
		}
	}
	return nil
}

func checkPowerRanks(_ context.Context, out *Output) error {
	byWeek := make(map[string][]int)
	var weeks []string
	for _, s := range out.Snapshots {
		if s.PowerRating < 0 || s.PowerRating > 100 {
			return fmt.Errorf("week %s team %s: power rating %g out of range", s.WeekID, s.TeamID, s.PowerRating)
		}
		if _, ok := byWeek[s.WeekID]; !ok {
			weeks = append(weeks, s.WeekID)
		}
		byWeek[s.WeekID] = append(byWeek[s.WeekID], s.PowerRank)
	}
	var errs []error
	for _, w := range weeks {
		if err := dense("week "+w, byWeek[w]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func checkStandingsRanks(_ context.Context, out *Output) error {
	var (
		overall  []int
		conf     = make(map[string][]int)
		confs    []string
		wildcard []int
		errs     []error
	)
	for _, s := range out.Standings {
		if s.Segment != model.RegularSeason {
			if s.OverallRk != nil || s.ConferenceRk != nil || s.WildcardRk != nil {
				errs = append(errs, fmt.Errorf("%s team %s: ranked outside the regular season", s.Segment, s.TeamID))
			}
			continue
		}
		if s.OverallRk == nil {
			errs = append(errs, fmt.Errorf("team %s: missing overall rank", s.TeamID))
			continue
		}
		overall = append(overall, *s.OverallRk)
		if s.ConferenceRk != nil {
			c := ""
			if s.ConferenceID != nil {
				c = *s.ConferenceID
			}
			if _, ok := conf[c]; !ok {
				confs = append(confs, c)
			}
			conf[c] = append(conf[c], *s.ConferenceRk)
		}
		if s.WildcardRk != nil {
			wildcard = append(wildcard, *s.WildcardRk)
		}
	}
	if err := dense("overall", overall); err != nil {
		errs = append(errs, err)
	}
	for _, c := range confs {
		if err := dense("conference "+c, conf[c]); err != nil {
			errs = append(errs, err)
		}
	}
	if err := dense("wildcard", wildcard); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkWildcardPool(_ context.Context, out *Output) error {
	var errs []error
	for _, s := range out.Standings {
		if s.Segment != model.RegularSeason {
			continue
		}
		inPool := s.ConferenceID != nil && s.ConferenceRk != nil && *s.ConferenceRk > out.WildcardCutoff
		if inPool != (s.WildcardRk != nil) {
			errs = append(errs, fmt.Errorf("team %s: wildcard rank does not match pool membership", s.TeamID))
		}
	}
	return errors.Join(errs...)
}
