package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConnectionLimiter(t *testing.T) {
	l := NewGlobalConnectionLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire(), "third acquire exceeds the cap")

	l.Release()
	assert.True(t, l.Acquire())
	assert.Equal(t, int64(2), l.Current())
}

func TestIPConnectionLimiter(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	assert.True(t, l.Acquire("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.1"))
	assert.False(t, l.Acquire("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.2"), "other IPs are unaffected")

	l.Release("10.0.0.1")
	assert.True(t, l.Acquire("10.0.0.1"))
	assert.Equal(t, 2, l.Count("10.0.0.1"))

	// Releasing an untracked IP must not underflow
	l.Release("10.0.0.99")
	assert.Equal(t, 0, l.Count("10.0.0.99"))
}

func TestConnectionRateLimiter(t *testing.T) {
	l := NewConnectionRateLimiter(0.001, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per IP")
}

func TestConnectionLimits_RollbackOnPerIPFailure(t *testing.T) {
	l := NewConnectionLimits(10, 1, 100, 100)

	ok, reason := l.Acquire("10.0.0.1")
	require.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = l.Acquire("10.0.0.1")
	require.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)
	assert.Equal(t, int64(1), l.global.Current(), "global slot rolled back")

	l.Release("10.0.0.1")
	assert.Equal(t, int64(0), l.global.Current())
}

func TestConnectionLimits_GlobalExhaustion(t *testing.T) {
	l := NewConnectionLimits(1, 10, 100, 100)

	ok, _ := l.Acquire("10.0.0.1")
	require.True(t, ok)

	ok, reason := l.Acquire("10.0.0.2")
	require.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)
}

func TestConnectionLimits_RateFirst(t *testing.T) {
	l := NewConnectionLimits(10, 10, 0.001, 1)

	ok, _ := l.Acquire("10.0.0.1")
	require.True(t, ok)

	ok, reason := l.Acquire("10.0.0.1")
	require.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
	assert.Equal(t, int64(1), l.global.Current(), "rate rejection never touches the global count")
}
