package repository

import (
	"context"
	"fmt"
	"strings"
)

// Storage drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the store for driver. The memory driver ignores dsn.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		s, err := NewSQLiteStore(ctx, dsn, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewGormStore(ctx, dsn, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}
