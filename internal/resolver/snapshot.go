package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mila411/pollen-storm/internal/domain"
	"github.com/mila411/pollen-storm/internal/logging"
	"github.com/mila411/pollen-storm/internal/metrics"
)

const dateKeyFormat = "2006-01-02"

// ResolveOptions tune a single resolve call.
type ResolveOptions struct {
	// At selects a point in time; zero means now.
	At time.Time
	// ForceRefresh forces a live attempt even inside the cooldown window.
	ForceRefresh bool
}

// Snapshots resolves current measurements for a region set. It always
// returns one record per requested region, degrading from live fetch to
// cache to synthetic data.
type Snapshots struct {
	provider domain.SnapshotProvider
	cooldown *Cooldown
	cache    *snapshotCache
	clock    clockwork.Clock
	timeout  time.Duration
}

// NewSnapshots creates a snapshot resolver. The cooldown is shared with the
// prediction resolver because both hit the same upstream provider.
func NewSnapshots(provider domain.SnapshotProvider, cooldown *Cooldown, timeout time.Duration, clock clockwork.Clock) *Snapshots {
	return &Snapshots{
		provider: provider,
		cooldown: cooldown,
		cache:    newSnapshotCache(),
		clock:    clock,
		timeout:  timeout,
	}
}

// Resolve returns one snapshot per requested region. It never returns an
// error: upstream failure degrades silently and the Source field is the only
// way to detect it.
func (r *Snapshots) Resolve(ctx context.Context, regions []domain.Region, opts ResolveOptions) map[string]domain.Snapshot {
	at := opts.At
	if at.IsZero() {
		at = r.clock.Now()
	}
	dateKey := at.Format(dateKeyFormat)

	live := r.fetchLive(ctx, regions, at, opts.ForceRefresh)

	out := make(map[string]domain.Snapshot, len(regions))
	for _, region := range regions {
		if snap, ok := live[region.ID]; ok {
			r.cache.put(region.ID, dateKey, snap)
			out[region.ID] = snap
			metrics.ResolverRecordsTotal.WithLabelValues("snapshot", string(domain.SourceLive)).Inc()
			continue
		}

		if snap, ok := r.cache.get(region.ID, dateKey); ok {
			snap.Source = domain.SourceCache
			out[region.ID] = snap
			metrics.ResolverRecordsTotal.WithLabelValues("snapshot", string(domain.SourceCache)).Inc()
			continue
		}

		out[region.ID] = syntheticSnapshot(region, at)
		logging.WithRegion(region.ID).Debug("Serving synthetic snapshot", "date", dateKey)
		metrics.ResolverRecordsTotal.WithLabelValues("snapshot", string(domain.SourceSynthetic)).Inc()
	}
	return out
}

// fetchLive attempts the upstream fetch unless the cooldown window is open.
// A nil map means no live data is available for any region.
func (r *Snapshots) fetchLive(ctx context.Context, regions []domain.Region, at time.Time, force bool) map[string]domain.Snapshot {
	if r.cooldown.Active() && !force {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	live, err := r.provider.FetchSnapshots(fetchCtx, regions, at)
	if err != nil {
		r.cooldown.RecordFailure()
		slog.Warn("Live snapshot fetch failed, degrading", "error", err)
		return nil
	}
	if len(live) == 0 {
		r.cooldown.RecordFailure()
		slog.Warn("Live snapshot fetch returned no data, degrading")
		return nil
	}

	r.cooldown.RecordSuccess()
	return live
}
