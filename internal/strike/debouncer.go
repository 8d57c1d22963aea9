// Package strike guards the rotational actuator against overlapping strike
// sequences.
package strike

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCooldown is the minimum time between two executed strikes.
const DefaultCooldown = time.Second

// Debouncer runs at most one strike sequence per cooldown window. The window
// starts when a sequence finishes, so a slow strike cannot be followed
// immediately by another.
type Debouncer struct {
	mu       sync.Mutex
	cooldown time.Duration
	now      func() time.Time
	last     time.Time

	allowed atomic.Uint64
	dropped atomic.Uint64
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Debouncer) {
		d.now = now
	}
}

// New creates a debouncer. A non-positive cooldown falls back to
// DefaultCooldown.
func New(cooldown time.Duration, opts ...Option) *Debouncer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	d := &Debouncer{cooldown: cooldown, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Try runs fn unless a strike finished less than the cooldown ago, in which
// case the request is dropped and Try returns false. The cooldown is
// restarted after fn returns, even when it fails.
func (d *Debouncer) Try(fn func() error) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.last.IsZero() && d.now().Sub(d.last) <= d.cooldown {
		d.dropped.Add(1)
		return false, nil
	}

	err := fn()
	d.last = d.now()
	d.allowed.Add(1)
	return true, err
}

// Reset forgets the last strike so the next Try runs immediately.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	d.last = time.Time{}
	d.mu.Unlock()
}

// Stats returns how many strikes were executed and how many were dropped.
func (d *Debouncer) Stats() (allowed, dropped uint64) {
	return d.allowed.Load(), d.dropped.Load()
}
