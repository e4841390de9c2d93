package dedupe

import "time"

// defaultTTL bounds how long a key stays pending if its run never releases it.
const defaultTTL = 10 * time.Minute

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithTTL sets how long an unreleased key blocks new runs.
// A ttl <= 0 keeps keys until they are released.
func WithTTL(ttl time.Duration) Option {
	return func(d *inMemoryDeduper) {
		d.ttl = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *inMemoryDeduper) {
		if now != nil {
			d.now = now
		}
	}
}
