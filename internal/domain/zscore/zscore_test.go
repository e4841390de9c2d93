package zscore_test

import (
	"testing"

	"github.com/okian/powerrank/internal/domain/zscore"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPopulation(t *testing.T) {
	Convey("Given a population of weekly values", t, func() {
		var p zscore.Population
		p.Add("a", 2)
		p.Add("b", 4)
		p.Add("c", 6)

		Convey("Then it uses the population deviation", func() {
			mean, std := p.MeanStd()
			So(mean, ShouldAlmostEqual, 4.0)
			So(std, ShouldAlmostEqual, 1.632993161855452, 1e-9)
		})

		Convey("Then scores are centred on the mean", func() {
			z := p.Scores(false)
			So(z["b"], ShouldAlmostEqual, 0.0)
			So(z["a"], ShouldAlmostEqual, -z["c"])
			So(z["c"], ShouldBeGreaterThan, 0.0)
		})

		Convey("Then flipping reverses the direction", func() {
			z := p.Scores(true)
			So(z["a"], ShouldBeGreaterThan, 0.0)
		})
	})

	Convey("Given a population with no spread", t, func() {
		z := zscore.Of(map[string]float64{"a": 3, "b": 3})

		Convey("Then the deviation falls back to 1 and every score is 0", func() {
			So(z["a"], ShouldEqual, 0.0)
			So(z["b"], ShouldEqual, 0.0)
		})
	})

	Convey("Given an empty population", t, func() {
		var p zscore.Population
		mean, std := p.MeanStd()

		Convey("Then it reports a neutral distribution", func() {
			So(mean, ShouldEqual, 0.0)
			So(std, ShouldEqual, 1.0)
			So(p.Scores(false), ShouldBeEmpty)
		})
	})
}
