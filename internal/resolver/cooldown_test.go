package resolver

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestCooldown_OpensAfterThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cd := NewCooldown(5*time.Minute, clock)

	cd.RecordFailure()
	cd.RecordFailure()
	assert.False(t, cd.Active(), "two failures should not open the window")

	cd.RecordFailure()
	assert.True(t, cd.Active(), "third consecutive failure opens the window")
}

func TestCooldown_ExpiresAfterWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cd := NewCooldown(5*time.Minute, clock)

	for range 3 {
		cd.RecordFailure()
	}
	assert.True(t, cd.Active())

	clock.Advance(5*time.Minute + time.Second)
	assert.False(t, cd.Active(), "window should close after the cooldown duration")
}

func TestCooldown_SuccessResetsStreakAndWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cd := NewCooldown(5*time.Minute, clock)

	cd.RecordFailure()
	cd.RecordFailure()
	cd.RecordSuccess()

	// The streak restarts, so two more failures stay below the threshold.
	cd.RecordFailure()
	cd.RecordFailure()
	assert.False(t, cd.Active())

	cd.RecordFailure()
	assert.True(t, cd.Active())

	cd.RecordSuccess()
	assert.False(t, cd.Active(), "success closes an open window")
}

func TestCooldown_NonConsecutiveFailuresStillCount(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cd := NewCooldown(time.Minute, clock)

	cd.RecordFailure()
	clock.Advance(10 * time.Minute)
	cd.RecordFailure()
	cd.RecordFailure()
	assert.True(t, cd.Active())
}
