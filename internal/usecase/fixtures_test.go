package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/permit-map/internal/aggregator"
	"github.com/permit-map/internal/classifier"
	"github.com/permit-map/internal/config"
	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/domain/repository"
	"github.com/permit-map/internal/usecase"
)

func ptr(v float64) *float64 { return &v }

// fixtureRecords: A в неделю 2023-W01, B и C в 2023-W02
func fixtureRecords() []domain.PermitRecord {
	return []domain.PermitRecord{
		{ZipCode: "10001", EventType: "A", Year: 2023, Week: 1, PermitCount: 5, Latitude: ptr(40.75), Longitude: ptr(-73.99)},
		{ZipCode: "10001", EventType: "B", Year: 2023, Week: 2, PermitCount: 3},
		{ZipCode: "10002", EventType: "C", Year: 2023, Week: 2, PermitCount: 2},
	}
}

func fixtureTypes() []domain.TypeTotal {
	return []domain.TypeTotal{
		{EventType: "A", ZipCode: "10001", TypeCount: 5},
		{EventType: "B", ZipCode: "10001", TypeCount: 3},
		{EventType: "A", ZipCode: "10002", TypeCount: 0},
		{EventType: "C", ZipCode: "10002", TypeCount: 2},
	}
}

func square(lon, lat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{lon, lat}, {lon + 0.01, lat}, {lon + 0.01, lat + 0.01}, {lon, lat}}}
}

// fixtureBoundaries: квантильные пороги по [8, 2, 0] = [0, 0, 2, 2, 8, 8]
func fixtureBoundaries() []domain.ZipBoundary {
	return []domain.ZipBoundary{
		{PostalCode: "10001", TotalPermits: 8, Geometry: square(-74.0, 40.74)},
		{PostalCode: "10002", TotalPermits: 2, Geometry: square(-73.99, 40.71)},
		{PostalCode: "10003", TotalPermits: 0, Geometry: square(-73.98, 40.72)},
	}
}

func fixtureMapConfig() config.MapConfig {
	return config.MapConfig{CenterLat: 40.7128, CenterLon: -74.0060, Zoom: 11, MinZoom: 10, MaxZoom: 18}
}

type testEnv struct {
	agg     *aggregator.Aggregator
	cls     *classifier.Classifier
	repo    *MockDatasetRepository
	dataset *usecase.DatasetUseCase
	maps    *usecase.MapUseCase
	stats   *usecase.StatsUseCase
}

// newTestEnv собирает use case'ы поверх мок-репозитория; cacheRepo может быть nil
func newTestEnv(t *testing.T, cacheRepo repository.CacheRepository, load bool) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	env := &testEnv{
		agg:  aggregator.New(logger),
		cls:  classifier.New(classifier.DefaultPalette, logger),
		repo: &MockDatasetRepository{},
	}
	env.dataset = usecase.NewDatasetUseCase(env.repo, env.agg, env.cls, cacheRepo, nil, logger)
	env.maps = usecase.NewMapUseCase(env.agg, env.cls, env.dataset, cacheRepo, fixtureMapConfig(), 10*time.Minute, nil, logger)
	env.stats = usecase.NewStatsUseCase(env.agg, env.cls, env.dataset, cacheRepo, time.Hour, nil, logger)

	if load {
		env.repo.On("LoadPermits", mock.Anything).Return(fixtureRecords(), nil)
		env.repo.On("LoadPermitTypes", mock.Anything).Return(fixtureTypes(), nil)
		env.repo.On("LoadBoundaries", mock.Anything).Return(fixtureBoundaries(), nil)

		report, err := env.dataset.Load(context.Background())
		require.NoError(t, err)
		require.True(t, report.Ready())
	}
	return env
}
