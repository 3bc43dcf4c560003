package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit("map")
		m.CacheMiss("map")
		m.DatasetLoad("permits", time.Second, false)
		m.Aggregation(time.Millisecond)
		m.DatasetState(true, 10)
		m.ReloadEvent(true)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CacheHit("map")
	m.CacheHit("map")
	m.CacheMiss("stats")
	m.DatasetLoad("boundaries", 20*time.Millisecond, false)
	m.DatasetState(true, 42)
	m.ReloadEvent(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("map")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("stats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loadFailures.WithLabelValues("boundaries")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.datasetReady))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.datasetRecords))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloadEvents.WithLabelValues("failure")))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := New()

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/api/v1/weeks", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/weeks", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/weeks", "200")))

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "permit_map_http_requests_total"))
}

func TestMetrics_AggregationRegistered(t *testing.T) {
	m := New()
	m.Aggregation(2 * time.Millisecond)
	m.Aggregation(3 * time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "permit_map_aggregation_duration_seconds" {
			continue
		}
		found = true
		require.Len(t, mf.GetMetric(), 1)
		assert.Equal(t, uint64(2), mf.GetMetric()[0].GetHistogram().GetSampleCount())
	}
	assert.True(t, found, "aggregation histogram must be registered")
}
