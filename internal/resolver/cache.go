package resolver

import (
	"sort"
	"sync"

	"github.com/mila411/pollen-storm/internal/domain"
)

// snapshotCache stores successful snapshots keyed by (regionID, date).
// Lookups fall back to the nearest prior date for the same region, so a
// region that went dark upstream still serves its last known reading.
type snapshotCache struct {
	mu      sync.RWMutex
	entries map[string]map[string]domain.Snapshot // regionID -> dateKey -> snapshot
}

func newSnapshotCache() *snapshotCache {
	return &snapshotCache{entries: make(map[string]map[string]domain.Snapshot)}
}

func (c *snapshotCache) put(regionID, dateKey string, snap domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	days, ok := c.entries[regionID]
	if !ok {
		days = make(map[string]domain.Snapshot)
		c.entries[regionID] = days
	}
	days[dateKey] = snap
}

// get returns the snapshot for the exact date, or the nearest prior date.
// Date keys are ISO (YYYY-MM-DD), so lexicographic order is date order.
func (c *snapshotCache) get(regionID, dateKey string) (domain.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	days, ok := c.entries[regionID]
	if !ok {
		return domain.Snapshot{}, false
	}
	if snap, ok := days[dateKey]; ok {
		return snap, true
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		if k < dateKey {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return domain.Snapshot{}, false
	}
	sort.Strings(keys)
	return days[keys[len(keys)-1]], true
}
