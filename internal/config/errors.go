package config

import "errors"

var (
	// ErrInvalidConfig marks a value Validate rejected.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a source (.env, YAML file, environment) that could not be read.
	ErrLoadConfig = errors.New("load config failed")
	// ErrUnknownSegment is returned for a segment scope outside REGULAR_SEASON, PLAYOFFS and LOSERS.
	ErrUnknownSegment = errors.New("unknown segment")
	// ErrUnknownDriver is returned for a storage driver other than memory, sqlite and postgres.
	ErrUnknownDriver = errors.New("unknown storage driver")
)
