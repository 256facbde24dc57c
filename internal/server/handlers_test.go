package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mila411/pollen-storm/internal/catalog"
	"github.com/mila411/pollen-storm/internal/config"
	"github.com/mila411/pollen-storm/internal/domain"
	"github.com/mila411/pollen-storm/internal/hub"
	"github.com/mila411/pollen-storm/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// darkProvider always fails, forcing the resolvers into their synthetic path.
type darkProvider struct{}

func (darkProvider) FetchSnapshots(_ context.Context, _ []domain.Region, _ time.Time) (map[string]domain.Snapshot, error) {
	return nil, context.DeadlineExceeded
}

func (darkProvider) FetchPredictions(_ context.Context, _ []domain.Region, _ int, _ time.Time) (map[string]domain.Prediction, error) {
	return nil, context.DeadlineExceeded
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:          "test",
		Port:            "0",
		MaxClients:      100,
		MaxClientsPerIP: 10,
		ConnectionRate:  100,
		ConnectionBurst: 100,
	}
}

func testServer(t *testing.T) *Server {
	t.Helper()

	clock := clockwork.NewRealClock()
	cat, err := catalog.Load("")
	require.NoError(t, err)

	cooldown := resolver.NewCooldown(5*time.Minute, clock)
	snapshots := resolver.NewSnapshots(darkProvider{}, cooldown, time.Second, clock)
	predictions := resolver.NewPredictions(darkProvider{}, snapshots, cooldown, time.Second, clock)

	h := hub.New(clock)
	t.Cleanup(func() { h.Stop() })

	return NewServer(testConfig(), cat, snapshots, predictions, h)
}

func doRequest(t *testing.T, srv *Server, method, target string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHandleRoot(t *testing.T) {
	srv := testServer(t)

	code, body := doRequest(t, srv, http.MethodGet, "/")
	assert.Equal(t, 200, code)
	assert.Equal(t, "pollen-storm", body["service"])
	assert.Contains(t, body, "endpoints")
}

func TestHandleRegions(t *testing.T) {
	srv := testServer(t)

	code, body := doRequest(t, srv, http.MethodGet, "/regions")
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(8), body["count"])

	regions := body["regions"].([]any)
	first := regions[0].(map[string]any)
	assert.Equal(t, "tokyo", first["id"])
}

func TestHandleCurrentData_AllRegions(t *testing.T) {
	srv := testServer(t)

	code, body := doRequest(t, srv, http.MethodGet, "/data/current")
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(8), body["count"])
	assert.NotContains(t, body, "requested_date")

	data := body["data"].([]any)
	require.Len(t, data, 8)
	for _, entry := range data {
		snap := entry.(map[string]any)
		assert.Equal(t, "synthetic", snap["source"])
		assert.NotEmpty(t, snap["pollen_level"])
	}
}

func TestHandleCurrentData_SingleRegion(t *testing.T) {
	srv := testServer(t)

	code, body := doRequest(t, srv, http.MethodGet, "/data/current?region=osaka")
	assert.Equal(t, 200, code)
	assert.Equal(t, float64(1), body["count"])

	data := body["data"].([]any)
	snap := data[0].(map[string]any)
	assert.Equal(t, "osaka", snap["region_id"])
}

func TestHandleCurrentData_UnknownRegion(t *testing.T) {
	srv := testServer(t)

	code, body := doRequest(t, srv, http.MethodGet, "/data/current?region=atlantis")
	assert.Equal(t, 404, code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "unknown region")
}

func TestHandleCurrentData_DateValidation(t *testing.T) {
	srv := testServer(t)
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	tooOld := time.Now().UTC().AddDate(-2, 0, 0).Format("2006-01-02")

	t.Run("valid date echoed back", func(t *testing.T) {
		code, body := doRequest(t, srv, http.MethodGet, "/data/current?date="+yesterday)
		assert.Equal(t, 200, code)
		assert.Equal(t, yesterday, body["requested_date"])
	})

	t.Run("future date rejected", func(t *testing.T) {
		code, body := doRequest(t, srv, http.MethodGet, "/data/current?date="+tomorrow)
		assert.Equal(t, 400, code)
		assert.Contains(t, body["error"], "future")
	})

	t.Run("too old rejected", func(t *testing.T) {
		code, body := doRequest(t, srv, http.MethodGet, "/data/current?date="+tooOld)
		assert.Equal(t, 400, code)
		assert.Contains(t, body["error"], "one year")
	})

	t.Run("garbage rejected", func(t *testing.T) {
		code, body := doRequest(t, srv, http.MethodGet, "/data/current?date=last-tuesday")
		assert.Equal(t, 400, code)
		assert.Contains(t, body["error"], "YYYY-MM-DD")
	})
}

func TestHandlePredict(t *testing.T) {
	srv := testServer(t)

	code, body := doRequest(t, srv, http.MethodGet, "/predict")
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(8), body["count"])

	predictions := body["predictions"].([]any)
	require.Len(t, predictions, 8)
	pred := predictions[0].(map[string]any)
	assert.GreaterOrEqual(t, pred["predicted_count"].(float64), 0.0)
	assert.NotEmpty(t, pred["predicted_level"])
}

func TestHandleHistorical(t *testing.T) {
	srv := testServer(t)

	code, body := doRequest(t, srv, http.MethodGet, "/historical?days=3")
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(24), body["count"], "one record per region per day")

	data := body["data"].([]any)
	require.Len(t, data, 24)

	// Newest day first, regions sorted within each day
	first := data[0].(map[string]any)
	ninth := data[8].(map[string]any)
	assert.Equal(t, "fukuoka", first["region_id"])
	assert.Equal(t, "fukuoka", ninth["region_id"])
	firstDay, err := time.Parse(time.RFC3339, first["timestamp"].(string))
	require.NoError(t, err)
	secondDay, err := time.Parse(time.RFC3339, ninth["timestamp"].(string))
	require.NoError(t, err)
	assert.True(t, secondDay.Before(firstDay))
}

func TestHandleHistorical_SingleRegion(t *testing.T) {
	srv := testServer(t)

	code, body := doRequest(t, srv, http.MethodGet, "/historical?region=tokyo&days=5")
	assert.Equal(t, 200, code)
	assert.Equal(t, float64(5), body["count"])

	for _, entry := range body["data"].([]any) {
		snap := entry.(map[string]any)
		assert.Equal(t, "tokyo", snap["region_id"])
	}
}

func TestHandleHistorical_BadInput(t *testing.T) {
	srv := testServer(t)

	t.Run("unknown region", func(t *testing.T) {
		code, body := doRequest(t, srv, http.MethodGet, "/historical?region=atlantis")
		assert.Equal(t, 404, code)
		assert.Equal(t, false, body["success"])
	})

	t.Run("non-integer days", func(t *testing.T) {
		code, body := doRequest(t, srv, http.MethodGet, "/historical?days=forever")
		assert.Equal(t, 400, code)
		assert.Contains(t, body["error"], "days must be an integer")
	})

	t.Run("days clamped to at least one", func(t *testing.T) {
		code, body := doRequest(t, srv, http.MethodGet, "/historical?region=tokyo&days=0")
		assert.Equal(t, 200, code)
		assert.Equal(t, float64(1), body["count"])
	})
}

func TestHandlePredict_BadDays(t *testing.T) {
	srv := testServer(t)

	code, body := doRequest(t, srv, http.MethodGet, "/predict?days=soon")
	assert.Equal(t, 400, code)
	assert.Contains(t, body["error"], "days must be an integer")
}

func TestHealthEndpoints(t *testing.T) {
	srv := testServer(t)

	code, body := doRequest(t, srv, http.MethodGet, "/health/live")
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", body["status"])

	code, body = doRequest(t, srv, http.MethodGet, "/health/ready")
	assert.Equal(t, 200, code)
	assert.Equal(t, "ready", body["status"])
}

func TestParseRequestedDate(t *testing.T) {
	now := time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC)

	t.Run("date only anchors to noon", func(t *testing.T) {
		at, err := parseRequestedDate("2026-08-30", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC), at)
	})

	t.Run("today is allowed", func(t *testing.T) {
		_, err := parseRequestedDate("2026-08-31", now)
		assert.NoError(t, err)
	})

	t.Run("full timestamp preserved", func(t *testing.T) {
		at, err := parseRequestedDate("2026-08-30T06:30:00Z", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, time.August, 30, 6, 30, 0, 0, time.UTC), at)
	})

	t.Run("timestamp with offset normalized to UTC", func(t *testing.T) {
		at, err := parseRequestedDate("2026-08-30T09:00:00+09:00", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC), at)
	})

	t.Run("future rejected", func(t *testing.T) {
		_, err := parseRequestedDate("2026-09-01", now)
		assert.Error(t, err)
	})

	t.Run("exactly one year back allowed", func(t *testing.T) {
		_, err := parseRequestedDate("2025-09-01", now)
		assert.NoError(t, err)
	})

	t.Run("beyond one year rejected", func(t *testing.T) {
		_, err := parseRequestedDate("2025-08-01", now)
		assert.Error(t, err)
	})
}
