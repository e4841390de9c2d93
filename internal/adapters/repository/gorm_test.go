package repository_test

import (
	"context"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/powerrank/internal/adapters/repository"
)

// Set POWERRANK_TEST_POSTGRES_DSN to run against a real database.
func TestGormStore(t *testing.T) {
	dsn := os.Getenv("POWERRANK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POWERRANK_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	Convey("Given a postgres store", t, func() {
		exerciseStore(func() repository.Store {
			s, err := repository.NewGormStore(ctx, dsn, repository.WithMaxOpenConns(2))
			So(err, ShouldBeNil)
			return s
		})
	})

	Convey("Given no dsn", t, func() {
		_, err := repository.NewGormStore(ctx, "")
		So(err, ShouldEqual, repository.ErrMissingDSN)
	})
}
