// Package standings accumulates win/loss records per season segment and
// resolves overall, conference and wildcard ranks.
//
// Teams are ordered by wins, then team points ((W−HW)×3 + HW×2 + HL). Teams
// level on both form a tie group which is re-ordered by, in turn: wins among
// the group, team points among the group, category score among the group,
// season category score, power rating and finally team id.
package standings

import (
	"sort"
	"strconv"

	"github.com/okian/powerrank/internal/domain/model"
)

// Default standings configuration constants.
const (
	defaultWildcardCutoff = 3
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWildcardCutoff sets how many teams per conference qualify directly;
// the rest form the wildcard pool.
func WithWildcardCutoff(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.wildcardCutoff = n
		}
	}
}

// Input is everything one segment's standings are built from.
type Input struct {
	SeasonID string
	Segment  model.Segment
	Teams    []model.Team
	// Weeks orders the matchups; matchups of unknown weeks sort last.
	Weeks    []model.Week
	Matchups []model.Matchup
	// PowerRating is the final tie-break, keyed by team id.
	PowerRating map[string]float64
}

// Engine computes standings.
type Engine struct {
	wildcardCutoff int
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{wildcardCutoff: defaultWildcardCutoff}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// game is one decided matchup from a team's point of view.
type game struct {
	opp   string
	own   int
	oppSc int
	won   bool
	tie   bool
}

type table struct {
	rows  map[string]*model.TeamSeasonStanding
	games map[string][]game
	power map[string]float64
}

// Compute returns one standing per team. Regular season standings come back
// in overall order; other segments are unranked and ordered by team id.
func (e *Engine) Compute(in Input) []model.TeamSeasonStanding {
	t := e.accumulate(in)

	ids := make([]string, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if in.Segment == model.RegularSeason {
		e.rank(t, ids)
		ids = t.order(ids)
	}

	out := make([]model.TeamSeasonStanding, 0, len(ids))
	for _, id := range ids {
		out = append(out, *t.rows[id])
	}
	return out
}

func (e *Engine) accumulate(in Input) *table {
	t := &table{
		rows:  make(map[string]*model.TeamSeasonStanding, len(in.Teams)),
		games: make(map[string][]game, len(in.Teams)),
		power: in.PowerRating,
	}
	conf := make(map[string]string, len(in.Teams))
	for _, tm := range in.Teams {
		row := &model.TeamSeasonStanding{
			TeamID:   tm.ID,
			SeasonID: in.SeasonID,
			Segment:  in.Segment,
		}
		// An empty conference id is no conference.
		if c := tm.Conference(); c != "" {
			row.ConferenceID = model.StringPtr(c)
		}
		t.rows[tm.ID] = row
		conf[tm.ID] = tm.Conference()
	}

	order := make(map[string]int, len(in.Weeks))
	for _, w := range in.Weeks {
		order[w.ID] = w.Order
	}
	ms := make([]model.Matchup, 0, len(in.Matchups))
	for _, m := range in.Matchups {
		if m.Decided() && m.HomeTeamID != m.AwayTeamID {
			ms = append(ms, m)
		}
	}
	sort.SliceStable(ms, func(i, j int) bool {
		oi, iok := order[ms[i].WeekID]
		oj, jok := order[ms[j].WeekID]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return ms[i].ID < ms[j].ID
	})

	outcomes := make(map[string][]byte, len(t.rows))
	for _, m := range ms {
		for _, id := range []string{m.HomeTeamID, m.AwayTeamID} {
			row, ok := t.rows[id]
			if !ok {
				continue
			}
			own, opp, won, _ := m.Side(id)
			oppID := m.Opponent(id)
			sameConf := conf[id] != "" && conf[id] == conf[oppID]
			g := game{opp: oppID, own: own, oppSc: opp, won: won, tie: *m.Tie}
			t.games[id] = append(t.games[id], g)
			row.CategoryScoreFor += own

			switch {
			case g.tie:
				outcomes[id] = append(outcomes[id], 'T')
			case won:
				row.W++
				if own == opp {
					row.HW++
				}
				if sameConf {
					row.CCW++
					if own == opp {
						row.CCHW++
					}
				}
				outcomes[id] = append(outcomes[id], 'W')
			default:
				row.L++
				if own == opp {
					row.HL++
				}
				if sameConf {
					row.CCL++
					if own == opp {
						row.CCHL++
					}
				}
				outcomes[id] = append(outcomes[id], 'L')
			}
		}
	}
	for id, seq := range outcomes {
		t.rows[id].Streak = Streak(seq)
	}
	return t
}

// Streak renders the trailing run of identical outcomes, e.g. "3W".
func Streak(outcomes []byte) string {
	if len(outcomes) == 0 {
		return ""
	}
	last := outcomes[len(outcomes)-1]
	n := 0
	for i := len(outcomes) - 1; i >= 0 && outcomes[i] == last; i-- {
		n++
	}
	return strconv.Itoa(n) + string(last)
}

func (e *Engine) rank(t *table, ids []string) {
	for i, id := range t.order(ids) {
		t.rows[id].OverallRk = model.IntPtr(i + 1)
	}

	byConf := make(map[string][]string)
	var confs []string
	for _, id := range ids {
		c := t.rows[id].ConferenceID
		if c == nil || *c == "" {
			continue
		}
		if _, ok := byConf[*c]; !ok {
			confs = append(confs, *c)
		}
		byConf[*c] = append(byConf[*c], id)
	}
	sort.Strings(confs)
	for _, c := range confs {
		for i, id := range t.order(byConf[c]) {
			t.rows[id].ConferenceRk = model.IntPtr(i + 1)
		}
	}

	var pool []string
	for _, id := range ids {
		r := t.rows[id]
		if r.ConferenceID != nil && r.ConferenceRk != nil && *r.ConferenceRk > e.wildcardCutoff {
			pool = append(pool, id)
		}
	}
	for i, id := range t.order(pool) {
		t.rows[id].WildcardRk = model.IntPtr(i + 1)
	}
}

// order sorts ids into final standing order.
func (t *table) order(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := t.rows[out[i]], t.rows[out[j]]
		if a.W != b.W {
			return a.W > b.W
		}
		if a.TeamPoints() != b.TeamPoints() {
			return a.TeamPoints() > b.TeamPoints()
		}
		return a.TeamID < b.TeamID
	})

	for start := 0; start < len(out); {
		end := start + 1
		for end < len(out) && t.level(out[start], out[end]) {
			end++
		}
		if end-start > 1 {
			t.breakTie(out[start:end])
		}
		start = end
	}
	return out
}

func (t *table) level(a, b string) bool {
	ra, rb := t.rows[a], t.rows[b]
	return ra.W == rb.W && ra.TeamPoints() == rb.TeamPoints()
}

// h2h is a team's record against the other members of its tie group.
type h2h struct {
	wins, points, scoreFor int
}

func (t *table) headToHead(id string, group map[string]bool) h2h {
	var r h2h
	for _, g := range t.games[id] {
		if !group[g.opp] || g.opp == id {
			continue
		}
		if g.won {
			r.wins++
		}
		if !g.tie {
			r.points += model.Points(g.own, g.oppSc, g.won)
		}
		r.scoreFor += g.own
	}
	return r
}

func (t *table) breakTie(group []string) {
	members := make(map[string]bool, len(group))
	for _, id := range group {
		members[id] = true
	}
	rec := make(map[string]h2h, len(group))
	for _, id := range group {
		rec[id] = t.headToHead(id, members)
	}
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		ha, hb := rec[a], rec[b]
		switch {
		case ha.wins != hb.wins:
			return ha.wins > hb.wins
		case ha.points != hb.points:
			return ha.points > hb.points
		case ha.scoreFor != hb.scoreFor:
			return ha.scoreFor > hb.scoreFor
		}
		ra, rb := t.rows[a], t.rows[b]
		if ra.CategoryScoreFor != rb.CategoryScoreFor {
			return ra.CategoryScoreFor > rb.CategoryScoreFor
		}
		if pa, pb := t.power[a], t.power[b]; pa != pb {
			return pa > pb
		}
		return a < b
	})
}
