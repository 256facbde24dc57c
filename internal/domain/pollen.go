package domain

import "time"

// PollenLevel classifies a pollen count into a display bucket.
type PollenLevel string

const (
	LevelLow      PollenLevel = "low"
	LevelModerate PollenLevel = "moderate"
	LevelHigh     PollenLevel = "high"
	LevelVeryHigh PollenLevel = "very_high"
)

// Canonical classification thresholds (particles/cm3).
const (
	thresholdModerate = 11
	thresholdHigh     = 31
	thresholdVeryHigh = 101
)

// LevelForCount derives the pollen level from a raw count. The level is
// always recomputed from the count; it is never accepted as an input field,
// so count and label cannot drift apart.
func LevelForCount(count float64) PollenLevel {
	switch {
	case count >= thresholdVeryHigh:
		return LevelVeryHigh
	case count >= thresholdHigh:
		return LevelHigh
	case count >= thresholdModerate:
		return LevelModerate
	default:
		return LevelLow
	}
}

// SnapshotSource records which step of the fallback chain produced a record.
type SnapshotSource string

const (
	SourceLive      SnapshotSource = "live"
	SourceCache     SnapshotSource = "cache"
	SourceSynthetic SnapshotSource = "synthetic"
)

// Weather bundles the meteorological readings attached to a snapshot.
type Weather struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection float64 `json:"wind_direction"`
	Pressure      float64 `json:"pressure"`
	Rainfall      float64 `json:"rainfall"`
	Condition     string  `json:"condition"`
}

// Snapshot is one point-in-time pollen measurement for a region.
type Snapshot struct {
	RegionID    string         `json:"region_id"`
	Region      string         `json:"region"`
	Prefecture  string         `json:"prefecture"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	ObservedAt  time.Time      `json:"timestamp"`
	PollenCount float64        `json:"pollen_count"`
	Level       PollenLevel    `json:"pollen_level"`
	Weather     Weather        `json:"weather"`
	Source      SnapshotSource `json:"source"`
}
