// Package catalog provides the static table of known regions. The table is
// loaded once at startup, either from the embedded default set or from a JSON
// file, and is read-only afterwards.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mila411/pollen-storm/internal/domain"
)

var defaultRegions = []domain.Region{
	{ID: "tokyo", Name: "東京", Prefecture: "東京都", Latitude: 35.6762, Longitude: 139.6503},
	{ID: "osaka", Name: "大阪", Prefecture: "大阪府", Latitude: 34.6937, Longitude: 135.5023},
	{ID: "kyoto", Name: "京都", Prefecture: "京都府", Latitude: 35.0116, Longitude: 135.7681},
	{ID: "nagoya", Name: "名古屋", Prefecture: "愛知県", Latitude: 35.1815, Longitude: 136.9066},
	{ID: "fukuoka", Name: "福岡", Prefecture: "福岡県", Latitude: 33.5904, Longitude: 130.4017},
	{ID: "sapporo", Name: "札幌", Prefecture: "北海道", Latitude: 43.0642, Longitude: 141.3469},
	{ID: "sendai", Name: "仙台", Prefecture: "宮城県", Latitude: 38.2682, Longitude: 140.8694},
	{ID: "hiroshima", Name: "広島", Prefecture: "広島県", Latitude: 34.3853, Longitude: 132.4553},
}

// Catalog is the immutable region table.
type Catalog struct {
	regions []domain.Region
	byID    map[string]domain.Region
}

// Load builds the catalog. When path is empty the embedded default set is
// used; otherwise the file must exist and parse, or startup fails. The
// service cannot serve without a region table.
func Load(path string) (*Catalog, error) {
	if path == "" {
		slog.Info("Using embedded region set", "regions", len(defaultRegions))
		return build(defaultRegions)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region catalog %s: %w", path, err)
	}

	var regions []domain.Region
	if err := json.Unmarshal(raw, &regions); err != nil {
		return nil, fmt.Errorf("parse region catalog %s: %w", path, err)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("region catalog %s is empty", path)
	}

	slog.Info("Loaded region catalog", "path", path, "regions", len(regions))
	return build(regions)
}

func build(regions []domain.Region) (*Catalog, error) {
	byID := make(map[string]domain.Region, len(regions))
	for _, r := range regions {
		if r.ID == "" {
			return nil, fmt.Errorf("region entry missing id (name=%q)", r.Name)
		}
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate region id %q", r.ID)
		}
		byID[r.ID] = r
	}
	return &Catalog{regions: regions, byID: byID}, nil
}

// List returns all regions in load order.
func (c *Catalog) List() []domain.Region {
	out := make([]domain.Region, len(c.regions))
	copy(out, c.regions)
	return out
}

// Get returns the region with the given id.
func (c *Catalog) Get(id string) (domain.Region, error) {
	r, ok := c.byID[id]
	if !ok {
		return domain.Region{}, domain.ErrRegionNotFound{ID: id}
	}
	return r, nil
}

// Contains reports whether id is a known region.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of regions.
func (c *Catalog) Len() int {
	return len(c.regions)
}
