package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForCount_Boundaries(t *testing.T) {
	tests := []struct {
		name  string
		count float64
		want  PollenLevel
	}{
		{"zero", 0, LevelLow},
		{"just below moderate", 10.999, LevelLow},
		{"moderate lower bound", 11, LevelModerate},
		{"just below high", 30.999, LevelModerate},
		{"high lower bound", 31, LevelHigh},
		{"just below very high", 100.999, LevelHigh},
		{"very high lower bound", 101, LevelVeryHigh},
		{"extreme", 500, LevelVeryHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelForCount(tt.count))
		})
	}
}

func TestLevelForCount_NegativeClampsToLow(t *testing.T) {
	assert.Equal(t, LevelLow, LevelForCount(-5))
}
