package resolver

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mila411/pollen-storm/internal/metrics"
)

// failureThreshold is the number of consecutive upstream failures that opens
// the cooldown window.
const failureThreshold = 3

// Cooldown suppresses live-fetch attempts for a window after repeated
// upstream failures. The expiry is a single atomically-updated timestamp;
// stale reads are acceptable, so no lock is held around it.
type Cooldown struct {
	clock    clockwork.Clock
	window   time.Duration
	until    atomic.Int64 // unix nanos; 0 means inactive
	failures atomic.Int32
}

// NewCooldown creates a cooldown with the given suppression window.
func NewCooldown(window time.Duration, clock clockwork.Clock) *Cooldown {
	return &Cooldown{clock: clock, window: window}
}

// Active reports whether live fetches are currently suppressed.
func (c *Cooldown) Active() bool {
	until := c.until.Load()
	return until != 0 && c.clock.Now().UnixNano() < until
}

// RecordFailure notes one upstream failure and opens the window once the
// consecutive-failure threshold is reached.
func (c *Cooldown) RecordFailure() {
	if c.failures.Add(1) < failureThreshold {
		return
	}
	expiry := c.clock.Now().Add(c.window)
	c.until.Store(expiry.UnixNano())
	c.failures.Store(0)
	metrics.ResolverCooldownActivations.Inc()
	slog.Warn("Upstream cooldown opened", "window", c.window, "until", expiry)
}

// RecordSuccess resets the failure streak and closes any open window.
func (c *Cooldown) RecordSuccess() {
	c.failures.Store(0)
	c.until.Store(0)
}
