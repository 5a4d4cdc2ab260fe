// Package cooldown implements the wall-clock throttling rule shared by
// actions, triggers and users: a cooldown is active while
// now - last < duration.
package cooldown

import (
	"sync"
	"time"
)

// Active reports whether a cooldown of d started at last is still running.
// A zero last or non-positive d never blocks.
func Active(last time.Time, d time.Duration, now time.Time) bool {
	if d <= 0 || last.IsZero() {
		return false
	}
	return now.Sub(last) < d
}

// Remaining returns how long the cooldown still runs, or zero.
func Remaining(last time.Time, d time.Duration, now time.Time) time.Duration {
	if !Active(last, d, now) {
		return 0
	}
	return d - now.Sub(last)
}

// Expired reports whether an absolute expiry has passed.
func Expired(expiry time.Time, now time.Time) bool {
	return expiry.IsZero() || !now.Before(expiry)
}

// Millis converts a millisecond count, as stored in definitions, to a Duration.
func Millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Tracker holds the last activation time of one throttled thing.
type Tracker struct {
	mu   sync.Mutex
	last time.Time
}

// Last returns the last activation, zero when never activated.
func (t *Tracker) Last() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Active reports whether the tracker is still cooling down.
func (t *Tracker) Active(d time.Duration, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Active(t.last, d, now)
}

// TryAcquire stamps now and returns true unless the cooldown is active.
func (t *Tracker) TryAcquire(d time.Duration, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if Active(t.last, d, now) {
		return false
	}
	t.last = now
	return true
}

// Mark records an activation at now.
func (t *Tracker) Mark(now time.Time) {
	t.mu.Lock()
	t.last = now
	t.mu.Unlock()
}

// Reset forgets the last activation.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.last = time.Time{}
	t.mu.Unlock()
}

// Clock abstracts time.Now for tests.
type Clock func() time.Time

// SystemClock is the wall clock.
var SystemClock Clock = time.Now
