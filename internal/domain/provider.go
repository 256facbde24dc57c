package domain

import (
	"context"
	"time"
)

// SnapshotProvider fetches live measurements from the upstream source.
// Implementations must honor ctx cancellation; callers bound every fetch
// with a timeout.
type SnapshotProvider interface {
	FetchSnapshots(ctx context.Context, regions []Region, at time.Time) (map[string]Snapshot, error)
}

// PredictionProvider fetches forecasts from the upstream model service.
type PredictionProvider interface {
	FetchPredictions(ctx context.Context, regions []Region, days int, at time.Time) (map[string]Prediction, error)
}
