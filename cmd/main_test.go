package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/powerrank/internal/app"
	"github.com/okian/powerrank/internal/config"
	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/pkg/logger"
)

func TestNewScheduler(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		ctx := context.Background()
		cfg := config.New()
		store, err := openStore(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		svc := app.New(store, cfg.Ranking)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		convey.Reset(func() {
			svc.Stop(ctx)
			_ = store.Close()
		})

		convey.Convey("When no schedule is configured", func() {
			c, err := newScheduler(ctx, cfg, svc, logger.Nop())

			convey.Convey("Then there is no scheduler", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(c, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a schedule is configured", func() {
			cfg.Schedule = "0 6 * * *"
			cfg.SeasonID = "2025"
			cfg.Timezone = "America/New_York"
			c, err := newScheduler(ctx, cfg, svc, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			convey.So(c.Entries(), convey.ShouldHaveLength, 1)

			convey.Convey("Then firing it queues a scheduled run", func() {
				c.Entries()[0].Job.Run()
				var st app.RunStatus
				for i := 0; i < 100; i++ {
					stats := svc.GetStats()
					if stats.LastRunID != "" {
						st, err = svc.Run(stats.LastRunID)
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				convey.So(err, convey.ShouldBeNil)
				convey.So(st.Request.SeasonID, convey.ShouldEqual, "2025")
				convey.So(st.Request.Source, convey.ShouldEqual, model.SourceSchedule)
			})
		})

		convey.Convey("When the schedule is malformed", func() {
			cfg.Schedule = "every day"
			_, err := newScheduler(ctx, cfg, svc, logger.Nop())

			convey.Convey("Then it is a configuration error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the mux is built", func() {
			mux := newMux(svc)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

			convey.Convey("Then the API is served", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, `"started":true`)
			})
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given a storage driver that needs a dsn", t, func() {
		cfg := config.New()
		cfg.Storage.Driver = "postgres"

		convey.Convey("When the store is opened without one", func() {
			_, err := openStore(context.Background(), cfg, logger.Nop())

			convey.Convey("Then it fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
