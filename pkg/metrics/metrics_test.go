package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func find(reg *prometheus.Registry, name string) *dto.MetricFamily {
	families, err := reg.Gather()
	So(err, ShouldBeNil)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		reg := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("league"),
				WithSubsystem("test"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"league": "nhl"}),
				WithPrometheusRegistry(reg),
			)
			m.runs.WithLabelValues(StatusOK).Inc()

			Convey("Then collectors are registered under the namespace", func() {
				f := find(reg, "league_test_runs_total")
				So(f, ShouldNotBeNil)
				So(f.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 1.0)
			})
		})

		Convey("When registering two managers on one registry", func() {
			NewManager(WithPrometheusRegistry(reg))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(reg)) }, ShouldPanic)
			})
		})
	})
}

func TestRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording a run", func() {
			RecordRun(StatusOK, 120*time.Millisecond)
			RecordRowsUpserted("standings", 4, 0)
			RecordWarnings(2)
			RecordDataGaps(1)
			RecordCheck("zero_sum", StatusOK)
			UpdateTeamsRanked(12)

			Convey("Then the registry exposes them", func() {
				So(find(GetRegistry(), "powerrank_engine_runs_total"), ShouldNotBeNil)
				So(find(GetRegistry(), "powerrank_engine_last_run_unix").GetMetric()[0].GetGauge().GetValue(), ShouldBeGreaterThan, 0.0)
				So(find(GetRegistry(), "powerrank_engine_teams_ranked").GetMetric()[0].GetGauge().GetValue(), ShouldEqual, 12.0)
			})
		})

		Convey("When recording queue, store and http activity", func() {
			So(func() {
				UpdateQueueCapacity(8)
				UpdateQueueSize(1)
				RecordQueueEnqueue()
				RecordQueueDequeue(time.Millisecond)
				RecordQueueEnqueueError()
				RecordRunDeduplicated()
				RecordScheduledRun()
				RecordStoreLatency("load_season", 3*time.Millisecond)
				RecordHTTPRequest("/healthz", "GET", "200")
				RecordHTTPRequestDuration("/healthz", "GET", "200", 0.4)
				RecordError("runner", "persistence")
			}, ShouldNotPanic)
		})
	})
}
