package app_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/powerrank/internal/adapters/repository"
	"github.com/okian/powerrank/internal/app"
	"github.com/okian/powerrank/internal/domain/model"
)

func statuses(results []app.CheckResult) map[string]string {
	out := make(map[string]string, len(results))
	for _, r := range results {
		out[r.Name] = r.Status
	}
	return out
}

func TestRunChecks(t *testing.T) {
	Convey("Given a check that panics and one that fails", t, func() {
		ctx := context.Background()
		checks := []app.Check{
			{Name: "boom", Fn: func(context.Context, *app.Output) error { panic("nil map") }},
			{Name: "bad", Fn: func(context.Context, *app.Output) error { return errors.New("bad row") }},
			{Name: "fine", Fn: func(context.Context, *app.Output) error { return nil }},
		}

		Convey("When they are run", func() {
			results := app.RunChecks(ctx, &app.Output{}, checks)

			Convey("Then each becomes a result and siblings still run", func() {
				So(results, ShouldHaveLength, 3)
				So(results[0].Status, ShouldEqual, app.CheckError)
				So(results[0].Message, ShouldContainSubstring, "nil map")
				So(results[1].Status, ShouldEqual, app.CheckError)
				So(results[1].Message, ShouldEqual, "bad row")
				So(results[2].Status, ShouldEqual, app.CheckOK)
			})
		})
	})

	Convey("Given a computed season", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		So(store.Import(ctx, withPlayoffs("c1")), ShouldBeNil)

		Convey("When the default checks run", func() {
			results, err := newRunner(store).Check(ctx, "c1")

			Convey("Then every check passes", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, len(app.DefaultChecks()))
				for _, r := range results {
					So(r.Status, ShouldEqual, app.CheckOK)
				}
			})

			Convey("Then nothing was written", func() {
				rows, err := store.PowerWeek(ctx, "c1", "w1")
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)
			})
		})
	})

	Convey("Given broken output", t, func() {
		ctx := context.Background()
		out := &app.Output{
			WildcardCutoff: 3,
			Snapshots: []model.PowerWeekSnapshot{
				{TeamID: "a", WeekID: "w1", EloDelta: 5, PowerRank: 1, PowerRating: 100},
				{TeamID: "b", WeekID: "w1", EloDelta: -4, PowerRank: 1},
			},
			Matchups: []model.Matchup{{
				ID: "m1", Complete: true,
				HomeScore: model.IntPtr(3), AwayScore: model.IntPtr(7),
				HomeWin: model.BoolPtr(true), AwayWin: model.BoolPtr(false), Tie: model.BoolPtr(false),
			}},
			Standings: []model.TeamSeasonStanding{
				{TeamID: "a", Segment: model.RegularSeason, OverallRk: model.IntPtr(1), ConferenceID: model.StringPtr("e"), ConferenceRk: model.IntPtr(1), WildcardRk: model.IntPtr(1)},
				{TeamID: "b", Segment: model.RegularSeason, OverallRk: model.IntPtr(3)},
			},
		}

		Convey("When the default checks run", func() {
			got := statuses(app.RunChecks(ctx, out, app.DefaultChecks()))

			Convey("Then every violated property is reported", func() {
				So(got["elo_zero_sum"], ShouldEqual, app.CheckError)
				So(got["matchup_flags"], ShouldEqual, app.CheckError)
				So(got["power_ranks"], ShouldEqual, app.CheckError)
				So(got["standings_ranks"], ShouldEqual, app.CheckError)
				So(got["wildcard_pool"], ShouldEqual, app.CheckError)
			})
		})
	})
}
