package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dedupe "github.com/okian/powerrank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKey(t *testing.T) {
	Convey("Given season and segment", t, func() {
		So(dedupe.Key("2025", "PLAYOFFS"), ShouldEqual, "2025/PLAYOFFS")
		So(dedupe.Key("2025", ""), ShouldEqual, "2025/*")
	})
}

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Pending(), ShouldEqual, 0)

		Convey("When a key is acquired", func() {
			So(d.Acquire(ctx, "s1/*"), ShouldBeTrue)

			Convey("Then acquiring it again is refused", func() {
				So(d.Acquire(ctx, "s1/*"), ShouldBeFalse)
				So(d.Pending(), ShouldEqual, 1)
			})

			Convey("Then other keys are independent", func() {
				So(d.Acquire(ctx, "s2/*"), ShouldBeTrue)
				So(d.Pending(), ShouldEqual, 2)
			})

			Convey("Then a released key can be acquired again", func() {
				d.Release(ctx, "s1/*")
				So(d.Pending(), ShouldEqual, 0)
				So(d.Acquire(ctx, "s1/*"), ShouldBeTrue)
			})
		})

		Convey("When releasing an unknown key", func() {
			d.Release(ctx, "nope")

			Convey("Then nothing changes", func() {
				So(d.Pending(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a deduper with a ttl", t, func() {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		d := dedupe.NewInMemoryDeduper(
			dedupe.WithTTL(time.Minute),
			dedupe.WithClock(func() time.Time { return now }),
		)
		So(d.Acquire(ctx, "s1/*"), ShouldBeTrue)

		Convey("When the ttl has not passed", func() {
			now = now.Add(30 * time.Second)

			Convey("Then the key is still held", func() {
				So(d.Acquire(ctx, "s1/*"), ShouldBeFalse)
			})
		})

		Convey("When the ttl has passed", func() {
			now = now.Add(2 * time.Minute)

			Convey("Then the stale key is taken over", func() {
				So(d.Acquire(ctx, "s1/*"), ShouldBeTrue)
				So(d.Pending(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given concurrent callers racing for one key", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithTTL(0))
		var won atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if d.Acquire(ctx, "s1/*") {
					won.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(won.Load(), ShouldEqual, int32(1))
		})
	})

	Convey("Given many distinct keys", t, func() {
		d := dedupe.NewInMemoryDeduper()
		for i := 0; i < 20; i++ {
			So(d.Acquire(ctx, fmt.Sprintf("s%d/*", i)), ShouldBeTrue)
		}

		Convey("Then all are pending", func() {
			So(d.Pending(), ShouldEqual, 20)
		})
	})
}
