// Package repository persists league input records and computed ranking
// output. Every store upserts by natural key and reads by season scope.
package repository

import (
	"context"

	"github.com/okian/powerrank/internal/domain/model"
)

// Output table names, used for counts and metrics labels.
const (
	TableMatchups  = "matchups"
	TableTeamWeeks = "team_weeks"
	TableStandings = "standings"
)

// UpsertStats counts what an upsert did. Rows whose stored value is already
// identical count as Unchanged.
type UpsertStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Add accumulates o into s.
func (s *UpsertStats) Add(o UpsertStats) {
	s.Created += o.Created
	s.Updated += o.Updated
	s.Unchanged += o.Unchanged
}

// Changed is the number of rows written.
func (s UpsertStats) Changed() int {
	return s.Created + s.Updated
}

// Reader fetches the inputs of one season.
type Reader interface {
	// LoadSeason returns every record of the season. An unknown season yields
	// empty SeasonData, not an error.
	LoadSeason(ctx context.Context, seasonID string) (*model.SeasonData, error)
}

// Writer upserts computed output by natural key.
type Writer interface {
	UpsertMatchups(ctx context.Context, rows []model.Matchup) (UpsertStats, error)
	UpsertTeamWeeks(ctx context.Context, rows []model.PowerWeekSnapshot) (UpsertStats, error)
	UpsertStandings(ctx context.Context, rows []model.TeamSeasonStanding) (UpsertStats, error)
}

// Querier reads computed output back.
type Querier interface {
	// Standings returns a segment's rows ordered by overall rank, unranked
	// rows last by team id.
	Standings(ctx context.Context, seasonID string, segment model.Segment) ([]model.TeamSeasonStanding, error)
	// PowerWeek returns one week's snapshots ordered by power rank.
	PowerWeek(ctx context.Context, seasonID, weekID string) ([]model.PowerWeekSnapshot, error)
}

// Importer loads input records, replacing rows with the same key.
type Importer interface {
	Import(ctx context.Context, data *model.SeasonData) error
}

// Store is the full repository surface.
type Store interface {
	Reader
	Writer
	Querier
	Importer
	Close() error
}
