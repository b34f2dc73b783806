package session

import (
	"sync"
	"time"
)

// DefaultRefreshLead is how long before token expiry the refresh fires.
const DefaultRefreshLead = 5 * time.Minute

// clock owns the single pre-expiry refresh timer for a store instance.
// Invariant: at most one timer is armed at any instant; every Schedule and
// Cancel call stops the previous timer first. The handle lives on the store,
// never at package level, so independent stores cannot interfere.
type clock struct {
	lead time.Duration
	now  func() time.Time
	fire func()

	mu    sync.Mutex
	timer *time.Timer
}

func newClock(lead time.Duration, now func() time.Time, fire func()) *clock {
	if lead <= 0 {
		lead = DefaultRefreshLead
	}
	if now == nil {
		now = time.Now
	}
	return &clock{lead: lead, now: now, fire: fire}
}

// Schedule arms the timer to fire lead before the given expiry (unix
// seconds). A token already inside the pre-expiry window is refreshed
// immediately rather than left to ride until a 401 forces logout. A token
// already past expiry schedules nothing; refresh would be rejected anyway.
func (c *clock) Schedule(exp int64) {
	c.mu.Lock()
	c.cancelLocked()
	if exp <= 0 {
		c.mu.Unlock()
		return
	}

	expiresAt := time.Unix(exp, 0)
	now := c.now()
	if !expiresAt.After(now) {
		c.mu.Unlock()
		return
	}

	d := expiresAt.Sub(now) - c.lead
	if d <= 0 {
		c.mu.Unlock()
		go c.fire()
		return
	}

	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		c.timer = nil
		c.mu.Unlock()
		c.fire()
	})
	c.mu.Unlock()
}

// Cancel stops any pending timer. Called on every path that replaces or
// clears the token, not only on teardown.
func (c *clock) Cancel() {
	c.mu.Lock()
	c.cancelLocked()
	c.mu.Unlock()
}

func (c *clock) cancelLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Pending reports whether a refresh timer is armed.
func (c *clock) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}
