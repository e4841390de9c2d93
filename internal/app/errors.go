package app

import "errors"

// Sentinel errors returned by runs and the service.
var (
	// ErrConfiguration aborts a run before anything is computed.
	ErrConfiguration = errors.New("configuration error")
	// ErrPersistence means an upsert failed. Batches written earlier in the
	// same run stay applied.
	ErrPersistence = errors.New("persistence failure")
	// ErrMissingSeason rejects a run request without a season id.
	ErrMissingSeason = errors.New("season id required")
	// ErrRunNotFound is returned for unknown run ids.
	ErrRunNotFound = errors.New("run not found")
	// ErrNotStarted is returned when the service has not been started.
	ErrNotStarted = errors.New("service not started")
)
