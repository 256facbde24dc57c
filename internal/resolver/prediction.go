package resolver

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mila411/pollen-storm/internal/domain"
	"github.com/mila411/pollen-storm/internal/metrics"
)

const (
	minHorizonDays = 1
	maxHorizonDays = 2

	confidenceFloor = 0.55
	confidenceSpan  = 0.20
	noiseLimit      = 3.0
)

// Predictions resolves next-period forecasts. When the upstream model
// service is unavailable it falls back to a closed-form estimate derived
// from the snapshot resolver's output, so it shares the never-fails
// contract.
type Predictions struct {
	provider  domain.PredictionProvider
	snapshots *Snapshots
	cooldown  *Cooldown
	clock     clockwork.Clock
	timeout   time.Duration
}

// NewPredictions creates a prediction resolver on top of the snapshot
// resolver.
func NewPredictions(provider domain.PredictionProvider, snapshots *Snapshots, cooldown *Cooldown, timeout time.Duration, clock clockwork.Clock) *Predictions {
	return &Predictions{
		provider:  provider,
		snapshots: snapshots,
		cooldown:  cooldown,
		clock:     clock,
		timeout:   timeout,
	}
}

// Resolve returns one prediction per requested region. Horizon is clamped to
// [1, 2] days. Never returns an error.
func (r *Predictions) Resolve(ctx context.Context, regions []domain.Region, days int, opts ResolveOptions) map[string]domain.Prediction {
	days = min(max(days, minHorizonDays), maxHorizonDays)

	at := opts.At
	if at.IsZero() {
		at = r.clock.Now()
	}

	snaps := r.snapshots.Resolve(ctx, regions, opts)
	live := r.fetchLive(ctx, regions, days, at, opts.ForceRefresh)

	out := make(map[string]domain.Prediction, len(regions))
	for _, region := range regions {
		if pred, ok := live[region.ID]; ok {
			out[region.ID] = pred
			metrics.ResolverRecordsTotal.WithLabelValues("prediction", string(domain.SourceLive)).Inc()
			continue
		}
		out[region.ID] = r.estimate(snaps[region.ID], days, at)
		metrics.ResolverRecordsTotal.WithLabelValues("prediction", string(domain.SourceSynthetic)).Inc()
	}
	return out
}

func (r *Predictions) fetchLive(ctx context.Context, regions []domain.Region, days int, at time.Time, force bool) map[string]domain.Prediction {
	if r.cooldown.Active() && !force {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	live, err := r.provider.FetchPredictions(fetchCtx, regions, days, at)
	if err != nil {
		r.cooldown.RecordFailure()
		slog.Warn("Live prediction fetch failed, degrading", "error", err)
		return nil
	}
	if len(live) == 0 {
		r.cooldown.RecordFailure()
		return nil
	}

	r.cooldown.RecordSuccess()
	return live
}

// estimate computes the closed-form forecast from a snapshot: warm dry windy
// days push pollen up, humidity and wind dampen dispersal near the station.
// Applied once per horizon day, feeding each day's estimate into the next.
func (r *Predictions) estimate(snap domain.Snapshot, days int, at time.Time) domain.Prediction {
	observed := snap.PollenCount
	w := snap.Weather

	predicted := observed
	for range days {
		predicted = predicted*0.7 +
			math.Max(0, w.Temperature-15)*2 -
			math.Max(0, w.Humidity-50)*0.5 -
			w.WindSpeed*1.5 +
			syntheticNoise(snap.RegionID, at, noiseLimit)
		predicted = math.Max(0, predicted)
	}

	// Confidence in [0.55, 0.75], lower for the longer horizon but never
	// below the floor.
	confidence := confidenceFloor + (syntheticNoise(snap.RegionID+"/conf", at, 1)+1)/2*confidenceSpan
	if days > 1 {
		confidence = math.Max(confidenceFloor, confidence*0.9)
	}

	return domain.Prediction{
		RegionID:       snap.RegionID,
		ForDate:        at.AddDate(0, 0, days),
		PredictedCount: round2(predicted),
		PredictedLevel: domain.LevelForCount(predicted),
		Confidence:     round2(confidence),
		Factors: domain.PredictionFactors{
			Temperature:     w.Temperature,
			Humidity:        w.Humidity,
			WindSpeed:       w.WindSpeed,
			HistoricalTrend: round2(predicted - observed),
		},
	}
}
