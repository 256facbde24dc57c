package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mila411/pollen-storm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clientRegions = []domain.Region{
	{ID: "tokyo", Name: "東京", Prefecture: "東京都", Latitude: 35.6762, Longitude: 139.6503},
	{ID: "osaka", Name: "大阪", Prefecture: "大阪府", Latitude: 34.6937, Longitude: 135.5023},
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(func() { server.Close() })
	return NewClient(server.URL, time.Second, clockwork.NewRealClock())
}

func TestFetchSnapshots(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/current", r.URL.Path)
		assert.Equal(t, "2026-03-15", r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": [
				{"region_id": "tokyo", "region": "Tokyo", "pollen_count": 45.5, "pollen_level": "low",
				 "temperature": 18.2, "humidity": 55, "wind_speed": 3.1, "wind_direction": 120,
				 "pressure": 1013, "rainfall": 0, "condition": "sunny", "timestamp": "2026-03-15T12:00:00Z"},
				{"region_id": "okinawa", "region": "Okinawa", "pollen_count": 5}
			]
		}`))
	})

	at := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	out, err := client.FetchSnapshots(context.Background(), clientRegions, at)
	require.NoError(t, err)

	require.Len(t, out, 1, "regions outside the catalog are dropped")
	snap := out["tokyo"]
	assert.Equal(t, 45.5, snap.PollenCount)
	assert.Equal(t, domain.LevelHigh, snap.Level, "wire label is ignored, level recomputed from count")
	assert.Equal(t, "東京", snap.Region, "identity comes from the catalog, not the wire")
	assert.Equal(t, "東京都", snap.Prefecture)
	assert.Equal(t, domain.SourceLive, snap.Source)
	assert.Equal(t, at, snap.ObservedAt)
	assert.Equal(t, 18.2, snap.Weather.Temperature)
}

func TestFetchSnapshots_UpstreamFailureFlag(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false}`))
	})

	_, err := client.FetchSnapshots(context.Background(), clientRegions, time.Time{})
	assert.ErrorContains(t, err, "upstream reported failure")
}

func TestFetchSnapshots_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.FetchSnapshots(context.Background(), clientRegions, time.Time{})
	assert.ErrorContains(t, err, "status 502")
}

func TestFetchSnapshots_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{broken`))
	})

	_, err := client.FetchSnapshots(context.Background(), clientRegions, time.Time{})
	assert.ErrorContains(t, err, "decode response")
}

func TestFetchPredictions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("days"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"predictions": [
				{"region_id": "tokyo", "pollen_tomorrow": 120.5, "pollen_today": 100,
				 "confidence": 0.82, "temperature": 19, "humidity": 48, "wind_speed": 2.5}
			]
		}`))
	})

	out, err := client.FetchPredictions(context.Background(), clientRegions, 2, time.Time{})
	require.NoError(t, err)

	require.Len(t, out, 1)
	pred := out["tokyo"]
	assert.Equal(t, 120.5, pred.PredictedCount)
	assert.Equal(t, domain.LevelVeryHigh, pred.PredictedLevel)
	assert.Equal(t, 0.82, pred.Confidence)
	assert.Equal(t, 20.5, pred.Factors.HistoricalTrend)
}

func TestFetchPredictions_ContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchPredictions(ctx, clientRegions, 1, time.Time{})
	assert.Error(t, err)
}
