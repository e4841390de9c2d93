package types_test

import (
	"testing"

	"github.com/okian/powerrank/internal/domain/model"
	types "github.com/okian/powerrank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFromStanding(t *testing.T) {
	Convey("Given a stored standing", t, func() {
		s := model.TeamSeasonStanding{TeamID: "a", W: 10, HW: 2, HL: 1, L: 4, Streak: "2W", OverallRk: model.IntPtr(3)}

		Convey("When converting it", func() {
			e := types.FromStanding(s)

			Convey("Then team points are derived", func() {
				So(e.TeamPoints, ShouldEqual, 29)
				So(*e.OverallRk, ShouldEqual, 3)
				So(e.WildcardRk, ShouldBeNil)
			})
		})
	})
}

func TestFromSnapshot(t *testing.T) {
	Convey("Given a power snapshot", t, func() {
		p := model.PowerWeekSnapshot{TeamID: "a", EloPost: 1510, EloDelta: 10, PowerRating: 100, PowerRank: 1}

		Convey("Then the entry carries post-week elo", func() {
			e := types.FromSnapshot(p)
			So(e.Elo, ShouldEqual, 1510.0)
			So(e.Rank, ShouldEqual, 1)
			So(e.PerfRaw, ShouldBeNil)
		})
	})
}
