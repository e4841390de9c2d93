// Package dedupe tracks which ranking runs are already pending so a burst of
// identical requests collapses into one run.
package dedupe

import (
	"context"
	"sync"
	"time"
)

// Deduper records pending run keys.
type Deduper interface {
	// Acquire marks key as pending. It returns false when key is already
	// pending and has not expired.
	Acquire(ctx context.Context, key string) bool

	// Release clears key once its run has finished or was never enqueued.
	Release(ctx context.Context, key string)

	// Pending returns the number of keys currently held.
	Pending() int
}

// Key builds the dedupe key for a season run. An empty segment means all
// segments.
func Key(seasonID, segment string) string {
	if segment == "" {
		segment = "*"
	}
	return seasonID + "/" + segment
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	pending map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		pending: make(map[string]time.Time),
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) Acquire(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.pending[key]; ok && (d.ttl <= 0 || now.Sub(at) < d.ttl) {
		return false
	}
	d.pending[key] = now
	return true
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
}

func (d *inMemoryDeduper) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
