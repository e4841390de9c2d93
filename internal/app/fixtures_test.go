package app_test

import (
	"context"
	"errors"
	"time"

	"github.com/okian/powerrank/internal/adapters/repository"
	"github.com/okian/powerrank/internal/domain/model"
)

var seasonStart = time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)

// clock sits after every fixture week except those built with upcoming.
func clock() time.Time { return time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC) }

func f(v float64) *float64 { return &v }

func week(id string, order int, typ model.WeekType) model.Week {
	start := seasonStart.AddDate(0, 0, 7*(order-1))
	return model.Week{ID: id, Type: typ, Start: start, End: start.AddDate(0, 0, 6), Order: order}
}

func upcoming(id string, order int) model.Week {
	start := clock().AddDate(0, 0, 7)
	return model.Week{ID: id, Type: model.RegularSeason, Start: start, End: start.AddDate(0, 0, 6), Order: order}
}

// strong beats weak in seven skater categories; weak takes wins, gaa and
// save_pct.
func strong(team, week string) model.TeamWeekStatLine {
	return model.TeamWeekStatLine{
		TeamID: team, WeekID: week,
		Goals: f(10), Assists: f(10), PlusMinus: f(5), PPP: f(4),
		Shots: f(100), Hits: f(50), Blocks: f(30),
		Wins: f(1), GAA: f(3.0), SavePct: f(0.900),
		Rating: f(80),
	}
}

func weak(team, week string) model.TeamWeekStatLine {
	return model.TeamWeekStatLine{
		TeamID: team, WeekID: week,
		Goals: f(5), Assists: f(5), PlusMinus: f(1), PPP: f(2),
		Shots: f(80), Hits: f(40), Blocks: f(20),
		Wins: f(3), GAA: f(2.0), SavePct: f(0.930),
		Rating: f(60),
	}
}

// oneWeek is a season of two teams and one complete week, a at home to b.
func oneWeek(season string) *model.SeasonData {
	return &model.SeasonData{
		SeasonID: season,
		Teams:    []model.Team{{ID: "a"}, {ID: "b"}},
		Weeks:    []model.Week{week("w1", 1, model.RegularSeason)},
		Matchups: []model.Matchup{
			{ID: "m1", WeekID: "w1", HomeTeamID: "a", AwayTeamID: "b"},
		},
		TeamStats: []model.TeamWeekStatLine{strong("a", "w1"), weak("b", "w1")},
	}
}

// withPlayoffs adds a playoff week with the same result.
func withPlayoffs(season string) *model.SeasonData {
	d := oneWeek(season)
	d.Weeks = append(d.Weeks, week("w2", 2, model.Playoffs))
	d.Matchups = append(d.Matchups, model.Matchup{ID: "m2", WeekID: "w2", HomeTeamID: "a", AwayTeamID: "b", PlayoffRound: model.IntPtr(1)})
	d.TeamStats = append(d.TeamStats, strong("a", "w2"), weak("b", "w2"))
	return d
}

var errDiskFull = errors.New("disk full")

// failingStore fails every team-week upsert.
type failingStore struct {
	*repository.MemoryStore
}

func (failingStore) UpsertTeamWeeks(context.Context, []model.PowerWeekSnapshot) (repository.UpsertStats, error) {
	return repository.UpsertStats{}, errDiskFull
}

// gatedStore blocks LoadSeason until gate is closed.
type gatedStore struct {
	*repository.MemoryStore
	gate chan struct{}
}

func (s gatedStore) LoadSeason(ctx context.Context, seasonID string) (*model.SeasonData, error) {
	select {
	case <-s.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.MemoryStore.LoadSeason(ctx, seasonID)
}
