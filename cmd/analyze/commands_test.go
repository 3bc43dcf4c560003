package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testdata = filepath.Join("..", "..", "internal", "repository", "source", "testdata")

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	argv := append([]string{
		"analyze",
		"--permits", filepath.Join(testdata, "weekly_permits.json"),
		"--types", filepath.Join(testdata, "total_by_type.json"),
		"--boundaries", filepath.Join(testdata, "zip_permits.geojson"),
		"--log-level", "error",
	}, args...)
	err := app.Run(context.Background(), argv)
	return out.String(), err
}

func TestTypesCommand(t *testing.T) {
	out, err := run(t, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "Total number of types: 3")
	assert.Contains(t, out, "=== Permits per type ===")

	out, err = run(t, "--format", "json", "types")
	require.NoError(t, err)

	var report typesReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Types)
	require.Len(t, report.Distribution, 3)
	assert.Equal(t, "A", report.Distribution[0].EventType)
	assert.Equal(t, 6, report.Distribution[0].Permits)
	assert.Equal(t, 2, report.Distribution[0].Records)
	assert.InDelta(t, 3.0, report.Distribution[0].Mean, 1e-9)
}

func TestWeeklyCommand(t *testing.T) {
	out, err := run(t, "--format", "json", "weekly")
	require.NoError(t, err)

	var report weeklyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Weeks)
	assert.Equal(t, 4, report.ZipCodes)
	assert.Equal(t, 6, report.Weekly.Count)
	assert.Equal(t, 5, report.Weekly.Max)
	assert.InDelta(t, 2.5, report.Weekly.Percentiles["p50"], 1e-9)

	out, err = run(t, "weekly")
	require.NoError(t, err)
	assert.Contains(t, out, "Total weeks: 3")
	assert.Contains(t, out, "p95:")
}

func TestBreaksCommand(t *testing.T) {
	out, err := run(t, "--format", "json", "breaks")
	require.NoError(t, err)

	var report breaksReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Boundaries)
	assert.Equal(t, []int{0, 0, 2, 2, 8, 8}, report.Breaks)
	assert.Equal(t, []int{1, 0, 1, 0, 1, 0, 0}, report.Buckets)
	assert.Len(t, report.Legend, 7)

	out, err = run(t, "breaks")
	require.NoError(t, err)
	assert.Contains(t, out, "Quantile breaks: [0 0 2 2 8 8]")
	assert.Contains(t, out, "(empty)")
}

func TestCommandErrors(t *testing.T) {
	_, err := run(t, "--format", "yaml", "types")
	assert.Error(t, err)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err = app.Run(context.Background(), []string{"analyze", "--permits", "missing.json", "--log-level", "error", "weekly"})
	assert.Error(t, err)
}

func TestPercentileOf(t *testing.T) {
	assert.Equal(t, 25.0, percentileOf("p25"))
	assert.Equal(t, 16.67, percentileOf("p16.67"))
}
