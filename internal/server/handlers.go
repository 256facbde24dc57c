package server

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mila411/pollen-storm/internal/domain"
	"github.com/mila411/pollen-storm/internal/resolver"
)

const maxDateAge = 365 * 24 * time.Hour

const (
	defaultHistoricalDays = 30
	maxHistoricalDays     = 365
)

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"service": "pollen-storm",
		"message": "Pollen 3D Visualization API",
		"endpoints": map[string]string{
			"regions":    "/regions",
			"current":    "/data/current",
			"predict":    "/predict",
			"historical": "/historical",
			"websocket":  "/ws",
			"health":     "/health/live",
			"metrics":    "/metrics",
		},
	})
}

func (s *Server) handleRegions(c echo.Context) error {
	regions := s.catalog.List()
	return c.JSON(200, map[string]any{
		"success": true,
		"count":   len(regions),
		"regions": regions,
	})
}

func (s *Server) handleCurrentData(c echo.Context) error {
	regions, err := s.requestedRegions(c)
	if err != nil {
		return errorJSON(c, 404, err.Error())
	}

	opts, requestedDate, err := s.resolveOptions(c)
	if err != nil {
		return errorJSON(c, 400, err.Error())
	}

	snapshots := s.snapshots.Resolve(c.Request().Context(), regions, opts)

	response := map[string]any{
		"success":   true,
		"count":     len(snapshots),
		"data":      sortedSnapshots(snapshots),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if requestedDate != "" {
		response["requested_date"] = requestedDate
	}
	return c.JSON(200, response)
}

func (s *Server) handlePredict(c echo.Context) error {
	regions, err := s.requestedRegions(c)
	if err != nil {
		return errorJSON(c, 404, err.Error())
	}

	opts, requestedDate, err := s.resolveOptions(c)
	if err != nil {
		return errorJSON(c, 400, err.Error())
	}

	days := 1
	if raw := c.QueryParam("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil {
			return errorJSON(c, 400, "days must be an integer")
		}
	}

	predictions := s.predictions.Resolve(c.Request().Context(), regions, days, opts)

	response := map[string]any{
		"success":     true,
		"count":       len(predictions),
		"predictions": sortedPredictions(predictions),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if requestedDate != "" {
		response["requested_date"] = requestedDate
	}
	return c.JSON(200, response)
}

// handleHistorical serves a day-by-day series going back from today, newest
// first. Each day resolves through the same fallback chain as /data/current,
// so the series never has holes: cached days serve their stored reading and
// the rest are generated.
func (s *Server) handleHistorical(c echo.Context) error {
	regions, err := s.requestedRegions(c)
	if err != nil {
		return errorJSON(c, 404, err.Error())
	}

	days := defaultHistoricalDays
	if raw := c.QueryParam("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil {
			return errorJSON(c, 400, "days must be an integer")
		}
	}
	days = min(max(days, 1), maxHistoricalDays)

	now := time.Now().UTC()
	data := make([]domain.Snapshot, 0, days*len(regions))
	for offset := 0; offset < days; offset++ {
		at := now.AddDate(0, 0, -offset)
		snapshots := s.snapshots.Resolve(c.Request().Context(), regions, resolver.ResolveOptions{At: at})
		data = append(data, sortedSnapshots(snapshots)...)
	}

	return c.JSON(200, map[string]any{
		"success":   true,
		"count":     len(data),
		"data":      data,
		"timestamp": now.Format(time.RFC3339),
	})
}

// requestedRegions narrows the catalog to the region query parameter, or
// returns the full catalog when absent.
func (s *Server) requestedRegions(c echo.Context) ([]domain.Region, error) {
	id := c.QueryParam("region")
	if id == "" {
		return s.catalog.List(), nil
	}
	region, err := s.catalog.Get(id)
	if err != nil {
		return nil, fmt.Errorf("unknown region: %s", id)
	}
	return []domain.Region{region}, nil
}

// resolveOptions builds resolver options from the refresh and date query
// parameters. The returned string echoes the validated date back to the
// caller, empty if none was given.
func (s *Server) resolveOptions(c echo.Context) (resolver.ResolveOptions, string, error) {
	opts := resolver.ResolveOptions{
		ForceRefresh: c.QueryParam("refresh") == "true",
	}

	raw := c.QueryParam("date")
	if raw == "" {
		return opts, "", nil
	}

	at, err := parseRequestedDate(raw, time.Now())
	if err != nil {
		return opts, "", err
	}
	opts.At = at
	return opts, at.Format("2006-01-02"), nil
}

// parseRequestedDate accepts YYYY-MM-DD or a full ISO-8601 timestamp.
// Date-only values are anchored to noon UTC so they fall inside the day they
// name. Future dates and dates older than one year are rejected.
func parseRequestedDate(raw string, now time.Time) (time.Time, error) {
	var at time.Time
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		at = time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
	} else if t, err := time.Parse(time.RFC3339, raw); err == nil {
		at = t.UTC()
	} else {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD or ISO-8601: %s", raw)
	}

	today := now.UTC().Truncate(24 * time.Hour)
	day := at.Truncate(24 * time.Hour)
	if day.After(today) {
		return time.Time{}, fmt.Errorf("date cannot be in the future: %s", raw)
	}
	if now.UTC().Sub(at) > maxDateAge {
		return time.Time{}, fmt.Errorf("date cannot be more than one year in the past: %s", raw)
	}
	return at, nil
}

func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]any{
		"success": false,
		"error":   message,
	})
}

func sortedSnapshots(m map[string]domain.Snapshot) []domain.Snapshot {
	out := make([]domain.Snapshot, 0, len(m))
	for _, snap := range m {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out
}

func sortedPredictions(m map[string]domain.Prediction) []domain.Prediction {
	out := make([]domain.Prediction, 0, len(m))
	for _, pred := range m {
		out = append(out, pred)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out
}
