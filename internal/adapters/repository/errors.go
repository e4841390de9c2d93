package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
	ErrMissingDSN        = errors.New("storage dsn required")
	ErrClosed            = errors.New("store closed")
	ErrInvalidRecord     = errors.New("invalid record")
)
