package engine

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum interval between consecutive requests.
type Throttle struct {
	delay time.Duration
	floor func() time.Duration

	mu        sync.Mutex
	lastFetch time.Time
}

// NewThrottle creates a Throttle with the given politeness delay.
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{delay: delay}
}

// SetFloor installs a source for a site-imposed minimum delay (a robots.txt
// Crawl-delay); the larger of the two applies.
func (t *Throttle) SetFloor(floor func() time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.floor = floor
}

// Wait blocks until the interval since the previous request has elapsed.
// The first call does not wait.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delay := t.delay
	if t.floor != nil {
		delay = max(delay, t.floor())
	}

	if !t.lastFetch.IsZero() && delay > 0 {
		if wait := delay - time.Since(t.lastFetch); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.lastFetch = time.Now()
	return nil
}
