package elo_test

import (
	"math"
	"testing"

	"github.com/okian/powerrank/internal/domain/elo"
	"github.com/okian/powerrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func decided(id, home, away string, hs, as int) model.Matchup {
	homeWin := hs >= as
	return model.Matchup{
		ID: id, HomeTeamID: home, AwayTeamID: away,
		HomeScore: model.IntPtr(hs), AwayScore: model.IntPtr(as),
		HomeWin: model.BoolPtr(homeWin), AwayWin: model.BoolPtr(!homeWin), Tie: model.BoolPtr(false),
	}
}

func newEngine() *elo.Engine {
	e, err := elo.NewEngine(elo.DefaultConfig(), 10)
	So(err, ShouldBeNil)
	return e
}

func TestConfig_Validate(t *testing.T) {
	Convey("Given rating configurations", t, func() {
		Convey("Then the defaults are valid", func() {
			So(elo.DefaultConfig().Validate(), ShouldBeNil)
		})

		Convey("Then a non-positive scale is rejected", func() {
			cfg := elo.DefaultConfig()
			cfg.Scale = 0
			_, err := elo.NewEngine(cfg, 10)
			So(err, ShouldEqual, elo.ErrInvalidScale)
		})

		Convey("Then a blend outside [0,1] is rejected", func() {
			cfg := elo.DefaultConfig()
			cfg.ActualBlend = 1.5
			So(cfg.Validate(), ShouldEqual, elo.ErrInvalidBlend)
		})

		Convey("Then a non-positive K is rejected", func() {
			cfg := elo.DefaultConfig()
			cfg.BaseK = -1
			So(cfg.Validate(), ShouldEqual, elo.ErrInvalidK)
		})
	})
}

func TestEngine_Components(t *testing.T) {
	Convey("Given an engine over ten categories", t, func() {
		e := newEngine()

		Convey("Then equal ratings expect an even result", func() {
			So(e.Expected(1500, 1500), ShouldAlmostEqual, 0.5)
			So(e.Expected(1900, 1500), ShouldAlmostEqual, 10.0/11.0)
		})

		Convey("Then actual scores are symmetric between the two sides", func() {
			So(e.ActualScore(7, 3, true)+e.ActualScore(3, 7, false), ShouldAlmostEqual, 1.0)
			So(e.ActualScore(5, 5, true)+e.ActualScore(5, 5, false), ShouldAlmostEqual, 1.0)
			// 0.8 × (0.5 + 4/20) + 0.2 × 1
			So(e.ActualScore(7, 3, true), ShouldAlmostEqual, 0.76)
		})

		Convey("Then larger margins raise K", func() {
			So(e.KFactor(5, 5, 1), ShouldAlmostEqual, 20.0)
			So(e.KFactor(10, 0, 1), ShouldAlmostEqual, 30.0)
		})

		Convey("Then week types scale K", func() {
			So(e.WeekMultiplier(model.RegularSeason, 0), ShouldEqual, 1.0)
			So(e.WeekMultiplier(model.LosersTournament, 0), ShouldEqual, 0.5)
			So(e.WeekMultiplier(model.Playoffs, 1), ShouldEqual, 1.5)
			So(e.WeekMultiplier(model.Playoffs, 3), ShouldEqual, 2.0)
		})
	})
}

func TestEngine_ProcessWeek(t *testing.T) {
	Convey("Given three seeded teams", t, func() {
		e := newEngine()
		e.Seed([]string{"a", "b", "c"})
		week := model.Week{ID: "w1", Type: model.RegularSeason, Order: 1}

		Convey("When a wins 7-3 against b and c sits out", func() {
			res := e.ProcessWeek(week, 0, []model.Matchup{decided("m1", "a", "b", 7, 3)})
			a, b, c := res.Updates["a"], res.Updates["b"], res.Updates["c"]

			Convey("Then the update is zero-sum", func() {
				So(a.Delta, ShouldBeGreaterThan, 0.0)
				So(a.Delta+b.Delta, ShouldAlmostEqual, 0.0, 1e-9)
				So((a.Post-a.Pre)+(b.Post-b.Pre), ShouldAlmostEqual, 0.0, 1e-9)
			})

			Convey("Then the winner's delta is K × (actual − expected)", func() {
				k := e.KFactor(7, 3, 1)
				So(*a.K, ShouldAlmostEqual, k)
				So(*a.Expected, ShouldAlmostEqual, 0.5)
				So(a.Delta, ShouldAlmostEqual, k*(0.76-0.5), 1e-9)
			})

			Convey("Then the idle team carries its rating forward", func() {
				So(c.Pre, ShouldEqual, 1500.0)
				So(c.Post, ShouldEqual, 1500.0)
				So(c.Expected, ShouldBeNil)
				So(c.K, ShouldBeNil)
			})

			Convey("Then the next week starts from the updated ratings", func() {
				next := e.ProcessWeek(model.Week{ID: "w2", Order: 2}, 0, nil)
				So(next.Updates["a"].Pre, ShouldEqual, a.Post)
			})
		})

		Convey("When a matchup is not decided yet", func() {
			m := decided("m1", "a", "b", 7, 3)
			m.HomeWin = nil
			res := e.ProcessWeek(week, 0, []model.Matchup{m})

			Convey("Then nobody moves", func() {
				So(res.Updates["a"].Delta, ShouldEqual, 0.0)
				So(res.Updates["b"].Delta, ShouldEqual, 0.0)
			})
		})

		Convey("When a team plays twice in the week", func() {
			res := e.ProcessWeek(week, 0, []model.Matchup{
				decided("m1", "a", "b", 6, 4),
				decided("m2", "c", "a", 8, 2),
			})

			Convey("Then it is flagged and the week stays zero-sum", func() {
				So(res.MultiMatchup, ShouldResemble, []string{"a"})
				sum := 0.0
				for _, u := range res.Updates {
					sum += u.Delta
				}
				So(math.Abs(sum), ShouldBeLessThan, 1e-9)
			})
		})

		Convey("When a team is paired against itself", func() {
			res := e.ProcessWeek(week, 0, []model.Matchup{
				decided("m1", "a", "a", 7, 3),
				decided("m2", "b", "c", 6, 4),
			})

			Convey("Then that matchup is ignored and the week stays zero-sum", func() {
				So(res.Updates["a"].Delta, ShouldEqual, 0.0)
				So(res.Updates["a"].Matchups, ShouldEqual, 0)
				So(res.Updates["a"].K, ShouldBeNil)
				So(res.Updates["b"].Delta+res.Updates["c"].Delta, ShouldAlmostEqual, 0.0, 1e-9)
			})
		})

		Convey("When an unseeded team appears", func() {
			res := e.ProcessWeek(week, 0, []model.Matchup{decided("m1", "a", "z", 4, 6)})

			Convey("Then it starts at the base rating and is reported", func() {
				So(res.Unknown, ShouldResemble, []string{"z"})
				So(res.Updates["z"].Pre, ShouldEqual, 1500.0)
				So(res.Updates["z"].Delta, ShouldBeGreaterThan, 0.0)
			})
		})

		Convey("When a playoff matchup carries its round", func() {
			pw := model.Week{ID: "p2", Type: model.Playoffs}
			m := decided("m1", "a", "b", 7, 3)
			m.PlayoffRound = model.IntPtr(2)
			res := e.ProcessWeek(pw, 1, []model.Matchup{m})

			Convey("Then K uses the round multiplier", func() {
				So(*res.Updates["a"].K, ShouldAlmostEqual, e.KFactor(7, 3, 1.75))
			})
		})
	})
}
