package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("run queue full")
	ErrClosed = errors.New("run queue closed")
)
