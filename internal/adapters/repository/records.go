package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/pkg/metrics"
)

// Every store keeps rows as (kind, key) -> JSON document, with the season and
// an optional scope (segment or week id) broken out for filtering.
const (
	kindTeam       = "team"
	kindWeek       = "week"
	kindMatchup    = "matchup"
	kindTeamStat   = "team_stat"
	kindPlayerStat = "player_stat"
	kindPowerWeek  = "power_week"
	kindStanding   = "standing"
)

type record struct {
	Kind     string
	Key      string
	SeasonID string
	Scope    string
	Data     []byte
}

func newRecord(kind, seasonID, scope string, v any, keyParts ...string) (record, error) {
	if seasonID == "" {
		return record{}, fmt.Errorf("%w: %s without season", ErrInvalidRecord, kind)
	}
	for _, p := range keyParts {
		if p == "" {
			return record{}, fmt.Errorf("%w: %s with empty key in season %s", ErrInvalidRecord, kind, seasonID)
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return record{}, fmt.Errorf("%w: encode %s: %v", ErrInvalidRecord, kind, err)
	}
	key := seasonID + "/" + strings.Join(keyParts, "/")
	return record{Kind: kind, Key: key, SeasonID: seasonID, Scope: scope, Data: data}, nil
}

func matchupRecords(rows []model.Matchup) ([]record, error) {
	out := make([]record, 0, len(rows))
	for _, m := range rows {
		r, err := newRecord(kindMatchup, m.SeasonID, m.WeekID, m, m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func powerRecords(rows []model.PowerWeekSnapshot) ([]record, error) {
	out := make([]record, 0, len(rows))
	for _, p := range rows {
		r, err := newRecord(kindPowerWeek, p.SeasonID, p.WeekID, p, p.TeamID, p.WeekID)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func standingRecords(rows []model.TeamSeasonStanding) ([]record, error) {
	out := make([]record, 0, len(rows))
	for _, s := range rows {
		r, err := newRecord(kindStanding, s.SeasonID, string(s.Segment), s, s.TeamID, string(s.Segment))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// seasonRecords flattens input data. Records without a season inherit the
// season of the import.
func seasonRecords(d *model.SeasonData) ([]record, error) {
	season := func(s string) string {
		if s == "" {
			return d.SeasonID
		}
		return s
	}
	var out []record
	add := func(r record, err error) error {
		if err != nil {
			return err
		}
		out = append(out, r)
		return nil
	}
	for _, t := range d.Teams {
		t.SeasonID = season(t.SeasonID)
		if err := add(newRecord(kindTeam, t.SeasonID, "", t, t.ID)); err != nil {
			return nil, err
		}
	}
	for _, w := range d.Weeks {
		w.SeasonID = season(w.SeasonID)
		if err := add(newRecord(kindWeek, w.SeasonID, string(w.Type), w, w.ID)); err != nil {
			return nil, err
		}
	}
	for _, m := range d.Matchups {
		m.SeasonID = season(m.SeasonID)
		if err := add(newRecord(kindMatchup, m.SeasonID, m.WeekID, m, m.ID)); err != nil {
			return nil, err
		}
	}
	for _, s := range d.TeamStats {
		s.SeasonID = season(s.SeasonID)
		if err := add(newRecord(kindTeamStat, s.SeasonID, s.WeekID, s, s.TeamID, s.WeekID)); err != nil {
			return nil, err
		}
	}
	for _, p := range d.PlayerStats {
		p.SeasonID = season(p.SeasonID)
		if err := add(newRecord(kindPlayerStat, p.SeasonID, p.WeekID, p, p.TeamID, p.WeekID, p.PlayerID)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// decodeSeason rebuilds SeasonData from records sorted by (kind, key).
func decodeSeason(seasonID string, rows []record) (*model.SeasonData, error) {
	d := &model.SeasonData{SeasonID: seasonID}
	for _, r := range rows {
		var err error
		switch r.Kind {
		case kindTeam:
			var v model.Team
			if err = json.Unmarshal(r.Data, &v); err == nil {
				d.Teams = append(d.Teams, v)
			}
		case kindWeek:
			var v model.Week
			if err = json.Unmarshal(r.Data, &v); err == nil {
				d.Weeks = append(d.Weeks, v)
			}
		case kindMatchup:
			var v model.Matchup
			if err = json.Unmarshal(r.Data, &v); err == nil {
				d.Matchups = append(d.Matchups, v)
			}
		case kindTeamStat:
			var v model.TeamWeekStatLine
			if err = json.Unmarshal(r.Data, &v); err == nil {
				d.TeamStats = append(d.TeamStats, v)
			}
		case kindPlayerStat:
			var v model.PlayerWeekStatLine
			if err = json.Unmarshal(r.Data, &v); err == nil {
				d.PlayerStats = append(d.PlayerStats, v)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s %s: %v", ErrInvalidRecord, r.Kind, r.Key, err)
		}
	}
	return d, nil
}

func decodeStandings(rows []record) ([]model.TeamSeasonStanding, error) {
	out := make([]model.TeamSeasonStanding, 0, len(rows))
	for _, r := range rows {
		var v model.TeamSeasonStanding
		if err := json.Unmarshal(r.Data, &v); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidRecord, r.Key, err)
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].OverallRk, out[j].OverallRk
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case (a == nil) != (b == nil):
			return a != nil
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out, nil
}

func decodePower(rows []record) ([]model.PowerWeekSnapshot, error) {
	out := make([]model.PowerWeekSnapshot, 0, len(rows))
	for _, r := range rows {
		var v model.PowerWeekSnapshot
		if err := json.Unmarshal(r.Data, &v); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidRecord, r.Key, err)
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PowerRank != out[j].PowerRank {
			return out[i].PowerRank < out[j].PowerRank
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out, nil
}

type writeOp int

const (
	opCreate writeOp = iota
	opUpdate
	opSame
)

func classify(existing []byte, found bool, next []byte) writeOp {
	switch {
	case !found:
		return opCreate
	case bytes.Equal(existing, next):
		return opSame
	default:
		return opUpdate
	}
}

func (s *UpsertStats) count(op writeOp) {
	switch op {
	case opCreate:
		s.Created++
	case opUpdate:
		s.Updated++
	default:
		s.Unchanged++
	}
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, time.Since(start))
}
