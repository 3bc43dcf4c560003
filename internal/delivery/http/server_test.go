package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/permit-map/internal/aggregator"
	"github.com/permit-map/internal/classifier"
	"github.com/permit-map/internal/config"
	delivery "github.com/permit-map/internal/delivery/http"
	"github.com/permit-map/internal/delivery/http/handler"
	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/pkg/metrics"
	"github.com/permit-map/internal/usecase"
)

// staticRepository отдаёт фиксированные коллекции; err ломает все три загрузки
type staticRepository struct {
	err error
}

func (r *staticRepository) LoadPermits(ctx context.Context) ([]domain.PermitRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	lat, lon := 40.75, -73.99
	return []domain.PermitRecord{
		{ZipCode: "10001", EventType: "A", Year: 2023, Week: 1, PermitCount: 5, Latitude: &lat, Longitude: &lon},
		{ZipCode: "10001", EventType: "B", Year: 2023, Week: 2, PermitCount: 3},
		{ZipCode: "10002", EventType: "C", Year: 2023, Week: 2, PermitCount: 2},
	}, nil
}

func (r *staticRepository) LoadPermitTypes(ctx context.Context) ([]domain.TypeTotal, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []domain.TypeTotal{
		{EventType: "A", ZipCode: "10001", TypeCount: 5},
		{EventType: "B", ZipCode: "10001", TypeCount: 3},
		{EventType: "C", ZipCode: "10002", TypeCount: 2},
	}, nil
}

func (r *staticRepository) LoadBoundaries(ctx context.Context) ([]domain.ZipBoundary, error) {
	if r.err != nil {
		return nil, r.err
	}
	square := func(lon, lat float64) orb.Polygon {
		return orb.Polygon{orb.Ring{{lon, lat}, {lon + 0.01, lat}, {lon + 0.01, lat + 0.01}, {lon, lat}}}
	}
	return []domain.ZipBoundary{
		{PostalCode: "10001", TotalPermits: 8, Geometry: square(-74.0, 40.74)},
		{PostalCode: "10002", TotalPermits: 2, Geometry: square(-73.99, 40.71)},
		{PostalCode: "10003", TotalPermits: 0, Geometry: square(-73.98, 40.72)},
	}, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

type testServer struct {
	app  *fiber.App
	repo *staticRepository
}

func newTestServer(t *testing.T, load bool) *testServer {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{
		Server: config.ServerConfig{CORSOrigins: "*"},
		Map:    config.MapConfig{CenterLat: 40.7128, CenterLon: -74.0060, Zoom: 11, MinZoom: 10, MaxZoom: 18},
	}

	repo := &staticRepository{}
	m := metrics.New()
	agg := aggregator.New(logger)
	cls := classifier.New(classifier.DefaultPalette, logger)
	datasetUC := usecase.NewDatasetUseCase(repo, agg, cls, nil, m, logger)
	mapUC := usecase.NewMapUseCase(agg, cls, datasetUC, nil, cfg.Map, time.Minute, m, logger)
	statsUC := usecase.NewStatsUseCase(agg, cls, datasetUC, nil, time.Minute, m, logger)

	if load {
		_, err := datasetUC.Load(context.Background())
		require.NoError(t, err)
	}

	server := delivery.NewServer(cfg, logger, m,
		handler.NewDatasetHandler(datasetUC, logger),
		handler.NewMapHandler(mapUC, logger),
		handler.NewStatsHandler(statsUC, logger),
	)
	return &testServer{app: server.App(), repo: repo}
}

func (s *testServer) do(t *testing.T, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (s *testServer) envelope(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	resp, raw := s.do(t, method, target, body)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func aggregateCounts(t *testing.T, env envelope) map[string]int {
	t.Helper()
	var data struct {
		Rows []domain.AggregateRow `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	counts := make(map[string]int, len(data.Rows))
	for _, r := range data.Rows {
		counts[r.ZipCode] = r.PermitCount
	}
	return counts
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, false)

	resp, raw := s.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"healthy","ready":false}`, string(raw))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestServer_NotReady(t *testing.T) {
	s := newTestServer(t, false)

	t.Run("map is an empty collection", func(t *testing.T) {
		resp, raw := s.do(t, http.MethodGet, "/api/v1/map", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		fc, err := geojson.UnmarshalFeatureCollection(raw)
		require.NoError(t, err)
		assert.Empty(t, fc.Features)
	})

	t.Run("aggregate is empty", func(t *testing.T) {
		status, env := s.envelope(t, http.MethodGet, "/api/v1/aggregate", "")
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, aggregateCounts(t, env))
	})

	t.Run("stats unavailable", func(t *testing.T) {
		status, env := s.envelope(t, http.MethodGet, "/api/v1/stats", "")
		assert.Equal(t, http.StatusServiceUnavailable, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "DATA_NOT_LOADED", env.Error.Code)
	})

	t.Run("status reports missing collections", func(t *testing.T) {
		status, env := s.envelope(t, http.MethodGet, "/api/v1/datasets/status", "")
		require.Equal(t, http.StatusOK, status)
		var data struct {
			Ready bool `json:"ready"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.False(t, data.Ready)
	})
}

func TestServer_Filter(t *testing.T) {
	s := newTestServer(t, true)

	status, env := s.envelope(t, http.MethodGet, "/api/v1/filter", "")
	require.Equal(t, http.StatusOK, status)
	var filter struct {
		Window   int      `json:"window"`
		Mode     string   `json:"mode"`
		Types    []string `json:"types"`
		AllTypes bool     `json:"all_types"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &filter))
	assert.Equal(t, 0, filter.Window)
	assert.True(t, filter.AllTypes)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, filter.Types)

	status, env = s.envelope(t, http.MethodPut, "/api/v1/filter", `{"window":2,"types":["B"]}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &filter))
	assert.Equal(t, 2, filter.Window)
	assert.Equal(t, []string{"B"}, filter.Types)
	assert.False(t, filter.AllTypes)

	// агрегат без параметров использует текущий фильтр
	status, env = s.envelope(t, http.MethodGet, "/api/v1/aggregate", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]int{"10001": 3}, aggregateCounts(t, env))
}

func TestServer_FilterValidation(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "negative window", body: `{"window":-1,"types":["A"]}`, code: "INVALID_FILTER"},
		{name: "padded type", body: `{"window":0,"types":[" A"]}`, code: "INVALID_FILTER"},
		{name: "malformed body", body: `{"window":`, code: "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.envelope(t, http.MethodPut, "/api/v1/filter", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestServer_AggregateQuery(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		name   string
		target string
		want   map[string]int
	}{
		{name: "all time all types", target: "/api/v1/aggregate?window=0", want: map[string]int{"10001": 8, "10002": 2}},
		{name: "all time subset", target: "/api/v1/aggregate?window=0&types=A&types=C", want: map[string]int{"10001": 5, "10002": 2}},
		{name: "first week", target: "/api/v1/aggregate?window=1", want: map[string]int{"10001": 5}},
		{name: "comma separated subset", target: "/api/v1/aggregate?window=0&types=A,C", want: map[string]int{"10001": 5, "10002": 2}},
		{name: "explicit empty selection", target: "/api/v1/aggregate?types=", want: map[string]int{}},
		{name: "window out of range", target: "/api/v1/aggregate?window=9", want: map[string]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.envelope(t, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, tt.want, aggregateCounts(t, env))
		})
	}

	t.Run("non-numeric window", func(t *testing.T) {
		status, env := s.envelope(t, http.MethodGet, "/api/v1/aggregate?window=abc", "")
		assert.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_FILTER", env.Error.Code)
	})
}

func TestServer_Map(t *testing.T) {
	s := newTestServer(t, true)

	resp, raw := s.do(t, http.MethodGet, "/api/v1/map?window=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, handler.GeoJSONContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	assert.Equal(t, "absolute", resp.Header.Get("X-Classification"))
	assert.Equal(t, "3", resp.Header.Get("X-Features"))

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	byZip := make(map[string]geojson.Properties)
	for _, f := range fc.Features {
		byZip[f.Properties.MustString("postalCode")] = f.Properties
	}
	assert.Equal(t, 5.0, byZip["10001"].MustFloat64("permit_count"))
	assert.Equal(t, 0.0, byZip["10002"].MustFloat64("permit_count"))
	assert.Equal(t, classifier.DefaultPalette[0], byZip["10002"].MustString("fillColor"))
}

func TestServer_LegendWeeksConfig(t *testing.T) {
	s := newTestServer(t, true)

	status, env := s.envelope(t, http.MethodGet, "/api/v1/legend?window=1", "")
	require.Equal(t, http.StatusOK, status)
	var legend struct {
		Policy string                   `json:"policy"`
		Items  []classifier.LegendEntry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &legend))
	assert.Equal(t, "absolute", legend.Policy)
	assert.Len(t, legend.Items, classifier.BucketCount)

	status, env = s.envelope(t, http.MethodGet, "/api/v1/weeks", "")
	require.Equal(t, http.StatusOK, status)
	var weeks struct {
		Weeks []struct {
			Index int    `json:"index"`
			Label string `json:"label"`
		} `json:"weeks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &weeks))
	require.Len(t, weeks.Weeks, 3)
	assert.Equal(t, usecase.AllTimeLabel, weeks.Weeks[0].Label)
	assert.Equal(t, "January 2, 2023 - January 8, 2023", weeks.Weeks[1].Label)

	status, env = s.envelope(t, http.MethodGet, "/api/v1/permit-types", "")
	require.Equal(t, http.StatusOK, status)
	var types struct {
		Types []string `json:"types"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &types))
	assert.Equal(t, []string{"A", "B", "C"}, types.Types)

	status, env = s.envelope(t, http.MethodGet, "/api/v1/map/config", "")
	require.Equal(t, http.StatusOK, status)
	var cfg struct {
		Zoom    int      `json:"zoom"`
		Palette []string `json:"palette"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, 11, cfg.Zoom)
	assert.Len(t, cfg.Palette, classifier.BucketCount)
}

func TestServer_Stats(t *testing.T) {
	s := newTestServer(t, true)

	for _, target := range []string{"/api/v1/stats"} {
		status, env := s.envelope(t, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, status)
		var stats domain.Statistics
		require.NoError(t, json.Unmarshal(env.Data, &stats))
		assert.Equal(t, 3, stats.Records)
		assert.Equal(t, []int{0, 0, 2, 2, 8, 8}, stats.Breaks)
	}

	status, env := s.envelope(t, http.MethodPost, "/api/v1/stats/refresh", "")
	require.Equal(t, http.StatusOK, status)
	var stats domain.Statistics
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.ZipCodes)
}

func TestServer_Reload(t *testing.T) {
	s := newTestServer(t, true)

	status, env := s.envelope(t, http.MethodPost, "/api/v1/datasets/reload", `{"reason":"manual"}`)
	require.Equal(t, http.StatusOK, status)
	var report domain.LoadReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.True(t, report.Ready())

	status, _ = s.envelope(t, http.MethodPost, "/api/v1/datasets/reload", "")
	assert.Equal(t, http.StatusOK, status)

	s.repo.err = errors.New("source unavailable")
	status, env = s.envelope(t, http.MethodPost, "/api/v1/datasets/reload", "")
	assert.Equal(t, http.StatusBadGateway, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RELOAD_FAILED", env.Error.Code)

	// прежние коллекции сохраняются
	status, env = s.envelope(t, http.MethodGet, "/api/v1/aggregate?window=0", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]int{"10001": 8, "10002": 2}, aggregateCounts(t, env))
}

func TestServer_MetricsAndNotFound(t *testing.T) {
	s := newTestServer(t, true)

	s.do(t, http.MethodGet, "/api/v1/health", "")

	resp, raw := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "permit_map_http_requests_total")
	assert.Contains(t, string(raw), "permit_map_dataset_ready 1")

	status, env := s.envelope(t, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
