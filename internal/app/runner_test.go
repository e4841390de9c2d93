package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/powerrank/internal/adapters/repository"
	"github.com/okian/powerrank/internal/app"
	"github.com/okian/powerrank/internal/config"
	"github.com/okian/powerrank/internal/domain/model"
)

func newRunner(store app.Store) *app.Runner {
	return app.NewRunner(store, config.New().Ranking, app.WithClock(clock))
}

func TestRunner_OneWeek(t *testing.T) {
	Convey("Given one complete week where a beats b in 7 of 10 categories", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.Import(ctx, oneWeek("s1")), ShouldBeNil)
		runner := newRunner(store)

		res, err := runner.Run(ctx, model.RunRequest{SeasonID: "s1"})
		So(err, ShouldBeNil)
		So(res.RunID, ShouldNotBeEmpty)
		So(res.NoData, ShouldBeFalse)
		So(res.Teams, ShouldEqual, 2)
		So(res.Weeks, ShouldEqual, 1)
		So(res.Gaps, ShouldEqual, 0)
		So(res.Warnings, ShouldBeEmpty)

		Convey("Then the matchup is settled 7-3 for the home side", func() {
			d, err := store.LoadSeason(ctx, "s1")
			So(err, ShouldBeNil)
			So(d.Matchups, ShouldHaveLength, 1)
			m := d.Matchups[0]
			So(*m.HomeScore, ShouldEqual, 7)
			So(*m.AwayScore, ShouldEqual, 3)
			So(*m.HomeWin, ShouldBeTrue)
			So(*m.AwayWin, ShouldBeFalse)
			So(*m.Tie, ShouldBeFalse)
			So(m.Complete, ShouldBeTrue)
			So(m.HomeRank, ShouldBeNil)
		})

		Convey("Then a is credited with a clean win", func() {
			rows, err := store.Standings(ctx, "s1", model.RegularSeason)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(rows[0].TeamID, ShouldEqual, "a")
			So(rows[0].W, ShouldEqual, 1)
			So(rows[0].TeamPoints(), ShouldEqual, 3)
			So(*rows[0].OverallRk, ShouldEqual, 1)
			So(rows[0].Streak, ShouldEqual, "1W")
			So(rows[0].PowerRank, ShouldEqual, 1)
			So(rows[0].LastWeekID, ShouldEqual, "w1")
			So(rows[1].L, ShouldEqual, 1)
			So(*rows[1].OverallRk, ShouldEqual, 2)
		})

		Convey("Then elo moves by equal and opposite amounts and a ranks first", func() {
			rows, err := store.PowerWeek(ctx, "s1", "w1")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(rows[0].TeamID, ShouldEqual, "a")
			So(rows[0].PowerRank, ShouldEqual, 1)
			So(rows[0].EloPre, ShouldEqual, 1500.0)
			So(rows[0].EloDelta, ShouldAlmostEqual, 6.24, 1e-9)
			So(rows[1].EloDelta, ShouldAlmostEqual, -6.24, 1e-9)
			So(rows[0].EloDelta+rows[1].EloDelta, ShouldAlmostEqual, 0.0, 1e-12)
			So(*rows[0].K, ShouldAlmostEqual, 24.0, 1e-9)
			So(*rows[0].Expected, ShouldAlmostEqual, 0.5, 1e-12)
			So(rows[0].PowerRating, ShouldEqual, 100.0)
			So(rows[1].PowerRating, ShouldEqual, 0.0)
			So(rows[0].PerfEWMA, ShouldBeGreaterThan, 0.0)
		})

		Convey("Then the upsert counts are reported per table", func() {
			So(res.Rows[repository.TableMatchups], ShouldEqual, 1)
			So(res.Rows[repository.TableTeamWeeks], ShouldEqual, 2)
			So(res.Rows[repository.TableStandings], ShouldEqual, 2)
			So(res.Tables[repository.TableMatchups].Updated, ShouldEqual, 1)
			So(res.Tables[repository.TableTeamWeeks].Created, ShouldEqual, 2)
			So(res.Tables[repository.TableStandings].Created, ShouldEqual, 2)
		})

		Convey("When the season is run again", func() {
			again, err := runner.Run(ctx, model.RunRequest{SeasonID: "s1"})
			So(err, ShouldBeNil)

			Convey("Then nothing changes", func() {
				for _, table := range []string{repository.TableMatchups, repository.TableTeamWeeks, repository.TableStandings} {
					So(again.Tables[table].Changed(), ShouldEqual, 0)
					So(again.Tables[table].Unchanged, ShouldEqual, res.Rows[table])
				}
			})
		})
	})
}

func TestRunner_Segments(t *testing.T) {
	Convey("Given a regular season week followed by a playoff week", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.Import(ctx, withPlayoffs("s2")), ShouldBeNil)
		runner := newRunner(store)

		Convey("When only the playoffs are run", func() {
			res, err := runner.Run(ctx, model.RunRequest{SeasonID: "s2", Segment: model.Playoffs})
			So(err, ShouldBeNil)
			So(res.Segment, ShouldEqual, model.Playoffs)
			So(res.Weeks, ShouldEqual, 1)

			Convey("Then ratings still carry the regular season in", func() {
				rows, err := store.PowerWeek(ctx, "s2", "w2")
				So(err, ShouldBeNil)
				So(rows[0].TeamID, ShouldEqual, "a")
				So(rows[0].EloPre, ShouldAlmostEqual, 1506.24, 1e-9)
				So(*rows[0].K, ShouldAlmostEqual, 36.0, 1e-9)
			})

			Convey("Then regular season output is not written", func() {
				rows, err := store.PowerWeek(ctx, "s2", "w1")
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)
				st, err := store.Standings(ctx, "s2", model.RegularSeason)
				So(err, ShouldBeNil)
				So(st, ShouldBeEmpty)
			})

			Convey("Then playoff standings are accumulated but unranked", func() {
				rows, err := store.Standings(ctx, "s2", model.Playoffs)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				for _, r := range rows {
					So(r.OverallRk, ShouldBeNil)
					So(r.ConferenceRk, ShouldBeNil)
					So(r.WildcardRk, ShouldBeNil)
				}
			})

			Convey("Then the playoff matchup carries last week's power ranks", func() {
				d, err := store.LoadSeason(ctx, "s2")
				So(err, ShouldBeNil)
				for _, m := range d.Matchups {
					if m.ID != "m2" {
						continue
					}
					So(*m.HomeRank, ShouldEqual, 1)
					So(*m.AwayRank, ShouldEqual, 2)
				}
			})
		})

		Convey("When every segment is run", func() {
			res, err := runner.Run(ctx, model.RunRequest{SeasonID: "s2"})
			So(err, ShouldBeNil)

			Convey("Then both segments get standings", func() {
				So(res.Rows[repository.TableStandings], ShouldEqual, 4)
				So(res.Rows[repository.TableTeamWeeks], ShouldEqual, 4)
			})
		})
	})
}

func TestRunner_Conditions(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		Convey("When the season has no data", func() {
			res, err := newRunner(store).Run(ctx, model.RunRequest{SeasonID: "empty"})

			Convey("Then the run reports no data without error", func() {
				So(err, ShouldBeNil)
				So(res.NoData, ShouldBeTrue)
				So(res.Tables, ShouldBeEmpty)
			})
		})

		Convey("When every week is still upcoming", func() {
			d := oneWeek("s3")
			d.Weeks = []model.Week{upcoming("w1", 1)}
			So(store.Import(ctx, d), ShouldBeNil)
			res, err := newRunner(store).Run(ctx, model.RunRequest{SeasonID: "s3"})

			Convey("Then there is nothing to rank and the matchup is untouched", func() {
				So(err, ShouldBeNil)
				So(res.NoData, ShouldBeTrue)
				loaded, err := store.LoadSeason(ctx, "s3")
				So(err, ShouldBeNil)
				So(loaded.Matchups[0].HomeScore, ShouldBeNil)
			})
		})

		Convey("When the configuration is invalid", func() {
			cfg := config.New().Ranking
			cfg.Elo.BaseK = 0
			So(store.Import(ctx, oneWeek("s4")), ShouldBeNil)
			_, err := app.NewRunner(store, cfg).Run(ctx, model.RunRequest{SeasonID: "s4"})

			Convey("Then it fails before computing", func() {
				So(errors.Is(err, app.ErrConfiguration), ShouldBeTrue)
				rows, _ := store.PowerWeek(ctx, "s4", "w1")
				So(rows, ShouldBeEmpty)
			})
		})

		Convey("When no season is given", func() {
			_, err := newRunner(store).Run(ctx, model.RunRequest{})

			Convey("Then it is a configuration error", func() {
				So(errors.Is(err, app.ErrConfiguration), ShouldBeTrue)
				So(errors.Is(err, app.ErrMissingSeason), ShouldBeTrue)
			})
		})

		Convey("When it is a dry run", func() {
			So(store.Import(ctx, oneWeek("s5")), ShouldBeNil)
			res, err := newRunner(store).Run(ctx, model.RunRequest{SeasonID: "s5", DryRun: true})

			Convey("Then intended counts are reported and nothing is written", func() {
				So(err, ShouldBeNil)
				So(res.DryRun, ShouldBeTrue)
				So(res.Rows[repository.TableTeamWeeks], ShouldEqual, 2)
				So(res.Tables, ShouldBeEmpty)
				rows, err := store.PowerWeek(ctx, "s5", "w1")
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)
			})
		})

		Convey("When the team-week upsert fails", func() {
			So(store.Import(ctx, oneWeek("s6")), ShouldBeNil)
			res, err := newRunner(failingStore{store}).Run(ctx, model.RunRequest{SeasonID: "s6"})

			Convey("Then a persistence error is returned and earlier batches stay", func() {
				So(errors.Is(err, app.ErrPersistence), ShouldBeTrue)
				So(errors.Is(err, errDiskFull), ShouldBeTrue)
				So(res.Tables[repository.TableMatchups].Updated, ShouldEqual, 1)
				_, wrote := res.Tables[repository.TableStandings]
				So(wrote, ShouldBeFalse)
				d, err := store.LoadSeason(ctx, "s6")
				So(err, ShouldBeNil)
				So(d.Matchups[0].Complete, ShouldBeTrue)
			})
		})

		Convey("When the data has gaps and unmapped teams", func() {
			d := oneWeek("s7")
			d.Teams = append(d.Teams, model.Team{ID: "c"})
			d.Matchups = append(d.Matchups,
				model.Matchup{ID: "m8", WeekID: "w1", HomeTeamID: "zz", AwayTeamID: "c"},
				model.Matchup{ID: "m9", WeekID: "w9", HomeTeamID: "a", AwayTeamID: "c"},
			)
			d.TeamStats = append(d.TeamStats, model.TeamWeekStatLine{TeamID: "zz", WeekID: "w1"})
			So(store.Import(ctx, d), ShouldBeNil)
			res, err := newRunner(store).Run(ctx, model.RunRequest{SeasonID: "s7"})

			Convey("Then gaps are counted and warnings are distinct and sorted", func() {
				So(err, ShouldBeNil)
				So(res.Gaps, ShouldEqual, 2)
				So(res.Warnings, ShouldResemble, []string{
					"matchup m9 references unknown week w9",
					"unmapped team zz in matchup m8",
					"unmapped team zz in stat line for week w1",
				})
			})
		})
	})
}

func TestRunner_WeekBoundaries(t *testing.T) {
	Convey("Given a week that is still being played", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		d := oneWeek("live")
		d.Weeks = []model.Week{{
			ID: "w1", Type: model.RegularSeason, Order: 1,
			Start: clock().AddDate(0, 0, -2), End: clock().AddDate(0, 0, 2),
		}}
		// flags left by an earlier run
		d.Matchups[0].HomeWin = model.BoolPtr(false)
		d.Matchups[0].AwayWin = model.BoolPtr(true)
		d.Matchups[0].Tie = model.BoolPtr(false)
		So(store.Import(ctx, d), ShouldBeNil)

		out, err := newRunner(store).Compute(ctx, "live", "")
		So(err, ShouldBeNil)

		Convey("Then scores refresh and the outcome flags are kept", func() {
			So(out.Matchups, ShouldHaveLength, 1)
			m := out.Matchups[0]
			So(*m.HomeScore, ShouldEqual, 7)
			So(*m.AwayScore, ShouldEqual, 3)
			So(*m.HomeWin, ShouldBeFalse)
			So(*m.AwayWin, ShouldBeTrue)
			So(m.Complete, ShouldBeFalse)
		})

		Convey("Then elo does not move", func() {
			So(out.Snapshots, ShouldHaveLength, 2)
			for _, s := range out.Snapshots {
				So(s.EloDelta, ShouldEqual, 0.0)
				So(s.EloPost, ShouldEqual, 1500.0)
			}
		})

		Convey("Then standings leave the week out", func() {
			So(out.Standings, ShouldHaveLength, 2)
			for _, s := range out.Standings {
				So(s.W+s.L, ShouldEqual, 0)
			}
		})
	})

	Convey("Given a league that keeps Toronto time on the last evening of a week", t, func() {
		ctx := context.Background()
		toronto, err := time.LoadLocation("America/Toronto")
		So(err, ShouldBeNil)
		store := repository.NewMemoryStore()
		d := oneWeek("tz")
		start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
		d.Weeks = []model.Week{{ID: "w1", Type: model.RegularSeason, Order: 1, Start: start, End: start.AddDate(0, 0, 6)}}
		So(store.Import(ctx, d), ShouldBeNil)
		evening := func() time.Time { return time.Date(2025, 1, 12, 20, 0, 0, 0, toronto) }

		Convey("When the runner reads weeks in the league timezone", func() {
			out, err := app.NewRunner(store, config.New().Ranking,
				app.WithClock(evening), app.WithLocation(toronto)).Compute(ctx, "tz", "")
			So(err, ShouldBeNil)

			Convey("Then the final day is still in play", func() {
				m := out.Matchups[0]
				So(m.Complete, ShouldBeFalse)
				So(m.HomeWin, ShouldBeNil)
				So(*m.HomeScore, ShouldEqual, 7)
			})
		})

		Convey("When the runner reads weeks in UTC", func() {
			out, err := app.NewRunner(store, config.New().Ranking, app.WithClock(evening)).Compute(ctx, "tz", "")
			So(err, ShouldBeNil)

			Convey("Then the week has already closed", func() {
				So(out.Matchups[0].Complete, ShouldBeTrue)
				So(*out.Matchups[0].HomeWin, ShouldBeTrue)
			})
		})
	})
}

func TestRunner_SelfMatchup(t *testing.T) {
	Convey("Given a week where one matchup pairs a team with itself", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		d := oneWeek("self")
		d.Matchups = append(d.Matchups, model.Matchup{ID: "m2", WeekID: "w1", HomeTeamID: "a", AwayTeamID: "a"})
		So(store.Import(ctx, d), ShouldBeNil)

		out, err := newRunner(store).Compute(ctx, "self", "")
		So(err, ShouldBeNil)

		Convey("Then it is skipped with a warning and elo stays zero-sum", func() {
			So(out.Warnings, ShouldContain, "team a plays itself in matchup m2")
			So(out.Matchups, ShouldHaveLength, 1)
			sum := 0.0
			for _, s := range out.Snapshots {
				sum += s.EloDelta
				if s.TeamID == "a" {
					So(s.EloDelta, ShouldAlmostEqual, 6.24, 1e-9)
				}
			}
			So(sum, ShouldAlmostEqual, 0.0, 1e-12)
		})

		Convey("Then the default checks pass", func() {
			for _, r := range app.RunChecks(ctx, out, app.DefaultChecks()) {
				So(r.Status, ShouldEqual, app.CheckOK)
			}
		})
	})
}
