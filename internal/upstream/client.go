// Package upstream implements the HTTP client for the measurement and
// prediction provider. The provider speaks the ML-service wire format:
// /data/current returns current readings, /predict returns forecasts.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mila411/pollen-storm/internal/domain"
	"github.com/mila411/pollen-storm/internal/metrics"
)

// Client implements domain.SnapshotProvider and domain.PredictionProvider
// against the upstream HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
}

// NewClient creates an upstream client. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, clock clockwork.Clock) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clock,
	}
}

type currentResponse struct {
	Success bool             `json:"success"`
	Data    []snapshotRecord `json:"data"`
}

type snapshotRecord struct {
	Region        string  `json:"region"`
	RegionID      string  `json:"region_id"`
	Prefecture    string  `json:"prefecture"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	PollenCount   float64 `json:"pollen_count"`
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection float64 `json:"wind_direction"`
	Pressure      float64 `json:"pressure"`
	Rainfall      float64 `json:"rainfall"`
	Condition     string  `json:"condition"`
	Timestamp     string  `json:"timestamp"`
}

type predictResponse struct {
	Success     bool               `json:"success"`
	Predictions []predictionRecord `json:"predictions"`
}

type predictionRecord struct {
	RegionID       string  `json:"region_id"`
	PollenTomorrow float64 `json:"pollen_tomorrow"`
	Confidence     float64 `json:"confidence"`
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	WindSpeed      float64 `json:"wind_speed"`
	PollenToday    float64 `json:"pollen_today"`
	Timestamp      string  `json:"timestamp"`
}

// FetchSnapshots requests current readings for the given regions. The pollen
// level is always recomputed from the count; the wire label is ignored.
func (c *Client) FetchSnapshots(ctx context.Context, regions []domain.Region, at time.Time) (map[string]domain.Snapshot, error) {
	params := url.Values{}
	if !at.IsZero() {
		params.Set("date", at.Format("2006-01-02"))
	}

	var resp currentResponse
	if err := c.get(ctx, "/data/current", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("upstream reported failure for /data/current")
	}

	wanted := make(map[string]domain.Region, len(regions))
	for _, r := range regions {
		wanted[r.ID] = r
	}

	out := make(map[string]domain.Snapshot, len(resp.Data))
	for _, rec := range resp.Data {
		region, ok := wanted[rec.RegionID]
		if !ok {
			continue
		}
		observed := c.clock.Now()
		if ts, err := time.Parse(time.RFC3339, rec.Timestamp); err == nil {
			observed = ts
		}
		out[rec.RegionID] = domain.Snapshot{
			RegionID:    rec.RegionID,
			Region:      region.Name,
			Prefecture:  region.Prefecture,
			Latitude:    region.Latitude,
			Longitude:   region.Longitude,
			ObservedAt:  observed,
			PollenCount: rec.PollenCount,
			Level:       domain.LevelForCount(rec.PollenCount),
			Weather: domain.Weather{
				Temperature:   rec.Temperature,
				Humidity:      rec.Humidity,
				WindSpeed:     rec.WindSpeed,
				WindDirection: rec.WindDirection,
				Pressure:      rec.Pressure,
				Rainfall:      rec.Rainfall,
				Condition:     rec.Condition,
			},
			Source: domain.SourceLive,
		}
	}
	return out, nil
}

// FetchPredictions requests forecasts for the given regions.
func (c *Client) FetchPredictions(ctx context.Context, regions []domain.Region, days int, at time.Time) (map[string]domain.Prediction, error) {
	params := url.Values{}
	params.Set("days", strconv.Itoa(days))
	if !at.IsZero() {
		params.Set("date", at.Format("2006-01-02"))
	}

	var resp predictResponse
	if err := c.get(ctx, "/predict", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("upstream reported failure for /predict")
	}

	wanted := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		wanted[r.ID] = struct{}{}
	}

	forDate := c.clock.Now().AddDate(0, 0, days)
	out := make(map[string]domain.Prediction, len(resp.Predictions))
	for _, rec := range resp.Predictions {
		if _, ok := wanted[rec.RegionID]; !ok {
			continue
		}
		out[rec.RegionID] = domain.Prediction{
			RegionID:       rec.RegionID,
			ForDate:        forDate,
			PredictedCount: rec.PollenTomorrow,
			PredictedLevel: domain.LevelForCount(rec.PollenTomorrow),
			Confidence:     rec.Confidence,
			Factors: domain.PredictionFactors{
				Temperature:     rec.Temperature,
				Humidity:        rec.Humidity,
				WindSpeed:       rec.WindSpeed,
				HistoricalTrend: rec.PollenTomorrow - rec.PollenToday,
			},
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, target any) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestDuration.WithLabelValues(path, "error").Observe(c.clock.Since(start).Seconds())
		return fmt.Errorf("upstream request %s: %w", path, err)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequestDuration.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Observe(c.clock.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
