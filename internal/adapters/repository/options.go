package repository

import (
	"time"

	"github.com/okian/powerrank/pkg/logger"
)

const (
	defaultQueryTimeout = 30 * time.Second
	defaultMaxOpenConns = 4
)

type options struct {
	queryTimeout time.Duration
	maxOpenConns int
	log          logger.Logger
	debugSQL     bool
}

func defaultOptions() options {
	return options{
		queryTimeout: defaultQueryTimeout,
		maxOpenConns: defaultMaxOpenConns,
		log:          logger.Nop(),
	}
}

// Option applies a configuration option to a SQL-backed store.
type Option func(*options)

// WithQueryTimeout bounds each store call.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.queryTimeout = d
		}
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithDebugSQL logs every statement gorm issues.
func WithDebugSQL(on bool) Option {
	return func(o *options) {
		o.debugSQL = on
	}
}
