package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/powerrank/internal/domain/model"
)

// MemoryStore keeps everything in process. It backs tests, dry runs and the
// server when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[string]record // kind + "|" + key
	closed bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]record)}
}

func rowID(kind, key string) string { return kind + "|" + key }

func (s *MemoryStore) upsert(recs []record) (UpsertStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return UpsertStats{}, ErrClosed
	}
	var st UpsertStats
	for _, r := range recs {
		id := rowID(r.Kind, r.Key)
		prev, found := s.rows[id]
		op := classify(prev.Data, found, r.Data)
		st.count(op)
		if op != opSame {
			s.rows[id] = r
		}
	}
	return st, nil
}

// scan returns a season's rows of the given kinds sorted by (kind, key).
// An empty scope matches every scope.
func (s *MemoryStore) scan(seasonID, scope string, kinds ...string) ([]record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []record
	for _, r := range s.rows {
		if r.SeasonID != seasonID || !want[r.Kind] || (scope != "" && r.Scope != scope) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// LoadSeason returns every input record of the season. An unknown season is empty, not an error.
func (s *MemoryStore) LoadSeason(_ context.Context, seasonID string) (*model.SeasonData, error) {
	defer observe("load_season", time.Now())
	rows, err := s.scan(seasonID, "", kindTeam, kindWeek, kindMatchup, kindTeamStat, kindPlayerStat)
	if err != nil {
		return nil, err
	}
	return decodeSeason(seasonID, rows)
}

// UpsertMatchups writes scored matchups keyed by matchup id.
func (s *MemoryStore) UpsertMatchups(_ context.Context, rows []model.Matchup) (UpsertStats, error) {
	defer observe("upsert_matchups", time.Now())
	recs, err := matchupRecords(rows)
	if err != nil {
		return UpsertStats{}, err
	}
	return s.upsert(recs)
}

// UpsertTeamWeeks writes power snapshots keyed by (team, week).
func (s *MemoryStore) UpsertTeamWeeks(_ context.Context, rows []model.PowerWeekSnapshot) (UpsertStats, error) {
	defer observe("upsert_team_weeks", time.Now())
	recs, err := powerRecords(rows)
	if err != nil {
		return UpsertStats{}, err
	}
	return s.upsert(recs)
}

// UpsertStandings writes standings keyed by (team, segment).
func (s *MemoryStore) UpsertStandings(_ context.Context, rows []model.TeamSeasonStanding) (UpsertStats, error) {
	defer observe("upsert_standings", time.Now())
	recs, err := standingRecords(rows)
	if err != nil {
		return UpsertStats{}, err
	}
	return s.upsert(recs)
}

// Standings returns the segment's standings in overall order.
func (s *MemoryStore) Standings(_ context.Context, seasonID string, segment model.Segment) ([]model.TeamSeasonStanding, error) {
	rows, err := s.scan(seasonID, string(segment), kindStanding)
	if err != nil {
		return nil, err
	}
	return decodeStandings(rows)
}

// PowerWeek returns one week's snapshots by power rank.
func (s *MemoryStore) PowerWeek(_ context.Context, seasonID, weekID string) ([]model.PowerWeekSnapshot, error) {
	rows, err := s.scan(seasonID, weekID, kindPowerWeek)
	if err != nil {
		return nil, err
	}
	return decodePower(rows)
}

// Import loads input records, replacing rows with the same key.
func (s *MemoryStore) Import(_ context.Context, data *model.SeasonData) error {
	if data == nil {
		return nil
	}
	recs, err := seasonRecords(data)
	if err != nil {
		return err
	}
	_, err = s.upsert(recs)
	return err
}

// Close marks the store closed; later calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
