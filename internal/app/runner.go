// Package app wires the ranking engines into season runs and serves them to
// the HTTP API, the scheduler and the CLI.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/powerrank/internal/adapters/repository"
	"github.com/okian/powerrank/internal/config"
	"github.com/okian/powerrank/internal/domain/composite"
	"github.com/okian/powerrank/internal/domain/elo"
	"github.com/okian/powerrank/internal/domain/matchup"
	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/internal/domain/performance"
	"github.com/okian/powerrank/internal/domain/standings"
	"github.com/okian/powerrank/pkg/logger"
	"github.com/okian/powerrank/pkg/metrics"
)

// Store is the repository surface a run needs.
type Store interface {
	repository.Reader
	repository.Writer
}

// Output is everything one run computed, before anything is written.
type Output struct {
	SeasonID       string
	Segment        model.Segment
	Matchups       []model.Matchup
	Snapshots      []model.PowerWeekSnapshot
	Standings      []model.TeamSeasonStanding
	Warnings       []string
	Gaps           int
	Teams          int
	Weeks          int
	WildcardCutoff int
}

// NoData reports whether there was nothing to rank.
func (o *Output) NoData() bool {
	return o == nil || o.Teams == 0 || o.Weeks == 0
}

// Result summarises one run. Rows holds the intended row count per output
// table; Tables holds what the upserts actually did and stays empty on a
// dry run.
type Result struct {
	RunID    string                            `json:"run_id"`
	SeasonID string                            `json:"season_id"`
	Segment  model.Segment                     `json:"segment,omitempty"`
	Source   model.RunSource                   `json:"source,omitempty"`
	DryRun   bool                              `json:"dry_run"`
	NoData   bool                              `json:"no_data"`
	Rows     map[string]int                    `json:"rows"`
	Tables   map[string]repository.UpsertStats `json:"tables,omitempty"`
	Warnings []string                          `json:"warnings,omitempty"`
	Gaps     int                               `json:"gaps"`
	Teams    int                               `json:"teams"`
	Weeks    int                               `json:"weeks"`
	Started  time.Time                         `json:"started"`
	Finished time.Time                         `json:"finished"`
}

// Runner computes and persists season runs.
type Runner struct {
	store  Store
	cfg    config.Ranking
	logger logger.Logger
	now    func() time.Time
	loc    *time.Location
}

// RunnerOption applies a configuration option to the Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the clock week status is derived from.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLocation sets the league timezone week boundaries are read in.
func WithLocation(loc *time.Location) RunnerOption {
	return func(r *Runner) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// NewRunner creates a Runner reading from and writing to store.
func NewRunner(store Store, cfg config.Ranking, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:  store,
		cfg:    cfg,
		logger: logger.Nop(),
		now:    time.Now,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type engines struct {
	scorer    *matchup.Scorer
	elo       *elo.Engine
	perf      *performance.Engine
	ranker    *composite.Ranker
	standings *standings.Engine
}

// engines builds a fresh engine set so no state leaks between runs.
func (r *Runner) engines() (*engines, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	scorer := matchup.New(
		matchup.WithCategories(r.cfg.Matchup.Categories),
		matchup.WithGoalieStartsThreshold(r.cfg.Matchup.GoalieStartsThreshold),
	)
	eloEngine, err := elo.NewEngine(r.cfg.EloConfig(), len(scorer.Categories()))
	if err != nil {
		return nil, err
	}
	perf, err := performance.NewEngine(r.cfg.PerformanceConfig(), scorer.Categories())
	if err != nil {
		return nil, err
	}
	ranker, err := composite.NewRanker(r.cfg.CompositeConfig())
	if err != nil {
		return nil, err
	}
	return &engines{
		scorer:    scorer,
		elo:       eloEngine,
		perf:      perf,
		ranker:    ranker,
		standings: standings.New(standings.WithWildcardCutoff(r.cfg.WildcardCutoff)),
	}, nil
}

func (r *Runner) segment(requested model.Segment) (model.Segment, error) {
	if requested == "" {
		return r.cfg.SegmentFilter()
	}
	seg, ok := model.ParseSegment(string(requested))
	if !ok {
		return "", fmt.Errorf("unknown segment %q", requested)
	}
	return seg, nil
}

// Compute loads a season and runs every engine over it without writing.
// segment "" falls back to the configured scope.
func (r *Runner) Compute(ctx context.Context, seasonID string, segment model.Segment) (*Output, error) {
	if seasonID == "" {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrMissingSeason)
	}
	seg, err := r.segment(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	eng, err := r.engines()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	data, err := r.store.LoadSeason(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("load season %s: %w", seasonID, err)
	}
	return r.compute(ctx, eng, seasonID, data, seg), nil
}

// Run computes a season and, unless it is a dry run, upserts matchups, team
// weeks and standings in that order.
func (r *Runner) Run(ctx context.Context, req model.RunRequest) (*Result, error) { //nolint:gocritic // hugeParam
	t0 := time.Now()
	res := &Result{
		RunID:    req.ID,
		SeasonID: req.SeasonID,
		Source:   req.Source,
		DryRun:   req.DryRun || r.cfg.DryRun,
		Rows:     make(map[string]int, 3),
		Tables:   make(map[string]repository.UpsertStats, 3),
		Started:  r.now(),
	}
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	log := r.logger.Named("run")
	status := metrics.StatusError
	defer func() {
		res.Finished = r.now()
		metrics.RecordRun(status, time.Since(t0))
	}()

	out, err := r.Compute(ctx, req.SeasonID, req.Segment)
	if err != nil {
		log.Error(ctx, "run aborted", logger.String("run_id", res.RunID), logger.String("season", req.SeasonID), logger.Error(err))
		return res, err
	}
	res.Segment = out.Segment
	res.Warnings = out.Warnings
	res.Gaps = out.Gaps
	res.Teams = out.Teams
	res.Weeks = out.Weeks
	metrics.RecordWarnings(len(out.Warnings))
	metrics.RecordDataGaps(out.Gaps)

	if out.NoData() {
		res.NoData = true
		status = metrics.StatusNoData
		log.Info(ctx, "no teams or weeks to rank",
			logger.String("run_id", res.RunID),
			logger.String("season", req.SeasonID),
			logger.String("segment", string(out.Segment)),
		)
		return res, nil
	}
	metrics.UpdateTeamsRanked(out.Teams)

	res.Rows[repository.TableMatchups] = len(out.Matchups)
	res.Rows[repository.TableTeamWeeks] = len(out.Snapshots)
	res.Rows[repository.TableStandings] = len(out.Standings)
	for _, w := range out.Warnings {
		log.Warn(ctx, w, logger.String("run_id", res.RunID))
	}

	if res.DryRun {
		status = metrics.StatusDryRun
		log.Info(ctx, "dry run",
			logger.String("run_id", res.RunID),
			logger.String("season", req.SeasonID),
			logger.Int(repository.TableMatchups, len(out.Matchups)),
			logger.Int(repository.TableTeamWeeks, len(out.Snapshots)),
			logger.Int(repository.TableStandings, len(out.Standings)),
		)
		return res, nil
	}

	steps := []struct {
		table string
		write func() (repository.UpsertStats, error)
	}{
		{repository.TableMatchups, func() (repository.UpsertStats, error) { return r.store.UpsertMatchups(ctx, out.Matchups) }},
		{repository.TableTeamWeeks, func() (repository.UpsertStats, error) { return r.store.UpsertTeamWeeks(ctx, out.Snapshots) }},
		{repository.TableStandings, func() (repository.UpsertStats, error) { return r.store.UpsertStandings(ctx, out.Standings) }},
	}
	for _, step := range steps {
		st, err := step.write()
		if err != nil {
			log.Error(ctx, "upsert failed",
				logger.String("run_id", res.RunID),
				logger.String("table", step.table),
				logger.Error(err),
			)
			return res, fmt.Errorf("%w: %s: %w", ErrPersistence, step.table, err)
		}
		res.Tables[step.table] = st
		metrics.RecordRowsUpserted(step.table, st.Created, st.Updated)
		log.Info(ctx, "upserted",
			logger.String("run_id", res.RunID),
			logger.String("table", step.table),
			logger.Int("created", st.Created),
			logger.Int("updated", st.Updated),
			logger.Int("unchanged", st.Unchanged),
		)
	}
	status = metrics.StatusOK
	return res, nil
}

// warnings collects distinct non-fatal messages.
type warnings map[string]struct{}

func (w warnings) add(format string, args ...any) {
	w[fmt.Sprintf(format, args...)] = struct{}{}
}

func (w warnings) list() []string {
	if len(w) == 0 {
		return nil
	}
	out := make([]string, 0, len(w))
	for msg := range w {
		out = append(out, msg)
	}
	sort.Strings(out)
	return out
}

func rankOf(ranks map[string]int, teamID string) *int {
	rk, ok := ranks[teamID]
	if !ok {
		return nil
	}
	return model.IntPtr(rk)
}

// compute folds the season week by week. Every week that has started is
// scored; only complete weeks move Elo and feed standings. Ratings and the
// smoothed performance span the whole season, while segment limits what
// ends up in the output.
func (r *Runner) compute(ctx context.Context, eng *engines, seasonID string, data *model.SeasonData, segment model.Segment) *Output {
	out := &Output{SeasonID: seasonID, Segment: segment, WildcardCutoff: r.cfg.WildcardCutoff}
	if data.Empty() {
		return out
	}
	now := r.now().In(r.loc)
	warn := warnings{}
	log := r.logger.Named("run")

	teams := append([]model.Team(nil), data.Teams...)
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	teamIDs := make([]string, 0, len(teams))
	known := make(map[string]bool, len(teams))
	for _, t := range teams {
		if known[t.ID] {
			warn.add("duplicate team %s", t.ID)
			continue
		}
		known[t.ID] = true
		teamIDs = append(teamIDs, t.ID)
	}
	eng.elo.Seed(teamIDs)

	weeks := append([]model.Week(nil), data.Weeks...)
	sort.SliceStable(weeks, func(i, j int) bool {
		if weeks[i].Order != weeks[j].Order {
			return weeks[i].Order < weeks[j].Order
		}
		return weeks[i].ID < weeks[j].ID
	})
	knownWeek := make(map[string]bool, len(weeks))
	for _, w := range weeks {
		knownWeek[w.ID] = true
	}

	byWeek := make(map[string][]model.Matchup)
	for _, m := range data.Matchups {
		switch {
		case !knownWeek[m.WeekID]:
			warn.add("matchup %s references unknown week %s", m.ID, m.WeekID)
		case !known[m.HomeTeamID]:
			warn.add("unmapped team %s in matchup %s", m.HomeTeamID, m.ID)
		case !known[m.AwayTeamID]:
			warn.add("unmapped team %s in matchup %s", m.AwayTeamID, m.ID)
		case m.HomeTeamID == m.AwayTeamID:
			warn.add("team %s plays itself in matchup %s", m.HomeTeamID, m.ID)
		default:
			byWeek[m.WeekID] = append(byWeek[m.WeekID], m)
		}
	}

	lines := make(map[model.TeamWeekKey]*model.TeamWeekStatLine, len(data.TeamStats))
	for i := range data.TeamStats {
		l := data.TeamStats[i]
		if !known[l.TeamID] {
			warn.add("unmapped team %s in stat line for week %s", l.TeamID, l.WeekID)
			continue
		}
		lines[model.TeamWeekKey{TeamID: l.TeamID, WeekID: l.WeekID}] = &l
	}
	goalies := model.GoalieStarts(data.PlayerStats)

	var (
		prevRank     map[string]int
		playoffRound int
		segOrder     []model.Segment
		segLast      = make(map[model.Segment]map[string]model.PowerWeekSnapshot)
		segWeeks     = make(map[model.Segment][]model.Week)
		segSettled   = make(map[model.Segment][]model.Matchup)
	)
	for _, w := range weeks {
		status := w.Status(now)
		if status == model.WeekUpcoming {
			continue
		}
		round := 0
		if w.Type == model.Playoffs {
			playoffRound++
			round = playoffRound
		}

		ms := byWeek[w.ID]
		sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
		played := make(map[string]bool, 2*len(ms))
		for i := range ms {
			m := &ms[i]
			home := matchup.Side{
				Stats:        lines[model.TeamWeekKey{TeamID: m.HomeTeamID, WeekID: w.ID}],
				GoalieStarts: goalies[model.TeamWeekKey{TeamID: m.HomeTeamID, WeekID: w.ID}],
			}
			away := matchup.Side{
				Stats:        lines[model.TeamWeekKey{TeamID: m.AwayTeamID, WeekID: w.ID}],
				GoalieStarts: goalies[model.TeamWeekKey{TeamID: m.AwayTeamID, WeekID: w.ID}],
			}
			eng.scorer.Apply(m, status, home, away)
			m.HomeRank = rankOf(prevRank, m.HomeTeamID)
			m.AwayRank = rankOf(prevRank, m.AwayTeamID)
			played[m.HomeTeamID], played[m.AwayTeamID] = true, true
		}

		var settled []model.Matchup
		if status == model.WeekComplete {
			settled = ms
		}
		eloWeek := eng.elo.ProcessWeek(w, round, settled)
		for _, id := range eloWeek.MultiMatchup {
			warn.add("team %s has more than one matchup in week %s", id, w.ID)
		}

		weekLines := make(map[string]*model.TeamWeekStatLine, len(teamIDs))
		for _, id := range teamIDs {
			if l := lines[model.TeamWeekKey{TeamID: id, WeekID: w.ID}]; l != nil {
				weekLines[id] = l
			} else {
				out.Gaps++
			}
			if !played[id] {
				out.Gaps++
			}
		}
		perf := eng.perf.ProcessWeek(teamIDs, weekLines, ms)

		inputs := make([]composite.Input, 0, len(teamIDs))
		for _, id := range teamIDs {
			inputs = append(inputs, composite.Input{
				TeamID:   id,
				Elo:      eloWeek.Updates[id].Post,
				PerfEWMA: perf[id].EWMA,
			})
		}
		entries := eng.ranker.Rank(inputs)

		inScope := segment == "" || w.Type == segment
		ranks := make(map[string]int, len(entries))
		last := make(map[string]model.PowerWeekSnapshot, len(entries))
		for _, e := range entries {
			u := eloWeek.Updates[e.TeamID]
			p := perf[e.TeamID]
			snap := model.PowerWeekSnapshot{
				TeamID:      e.TeamID,
				WeekID:      w.ID,
				SeasonID:    seasonID,
				Segment:     w.Type,
				EloPre:      u.Pre,
				EloPost:     u.Post,
				EloDelta:    u.Delta,
				Expected:    u.Expected,
				K:           u.K,
				PerfRaw:     p.Raw,
				PerfEWMA:    p.EWMA,
				Composite:   e.Composite,
				PowerRating: e.PowerRating,
				PowerRank:   e.Rank,
			}
			ranks[e.TeamID] = e.Rank
			last[e.TeamID] = snap
			if inScope {
				out.Snapshots = append(out.Snapshots, snap)
			}
		}
		prevRank = ranks

		if _, ok := segLast[w.Type]; !ok {
			segOrder = append(segOrder, w.Type)
		}
		segLast[w.Type] = last
		segWeeks[w.Type] = append(segWeeks[w.Type], w)
		segSettled[w.Type] = append(segSettled[w.Type], settled...)
		if inScope {
			out.Matchups = append(out.Matchups, ms...)
			out.Weeks++
		}

		if r.cfg.Verbose && len(entries) > 0 {
			log.Debug(ctx, "week ranked",
				logger.String("week", w.ID),
				logger.String("type", string(w.Type)),
				logger.String("status", status.String()),
				logger.Int("matchups", len(ms)),
				logger.Int("stat_lines", len(weekLines)),
				logger.String("leader", entries[0].TeamID),
				logger.Float64("leader_rating", entries[0].PowerRating),
			)
		}
	}

	for _, seg := range segOrder {
		if segment != "" && seg != segment {
			continue
		}
		last := segLast[seg]
		power := make(map[string]float64, len(last))
		for id, s := range last {
			power[id] = s.PowerRating
		}
		rows := eng.standings.Compute(standings.Input{
			SeasonID:    seasonID,
			Segment:     seg,
			Teams:       teams,
			Weeks:       segWeeks[seg],
			Matchups:    segSettled[seg],
			PowerRating: power,
		})
		for i := range rows {
			s := last[rows[i].TeamID]
			rows[i].LastWeekID = s.WeekID
			rows[i].EloPost = s.EloPost
			rows[i].PerfEWMA = s.PerfEWMA
			rows[i].Composite = s.Composite
			rows[i].PowerRating = s.PowerRating
			rows[i].PowerRank = s.PowerRank
		}
		out.Standings = append(out.Standings, rows...)
	}

	out.Teams = len(teamIDs)
	out.Warnings = warn.list()
	return out
}
