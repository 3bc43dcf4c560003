package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/permit-map/internal/domain"
	apperrors "github.com/permit-map/internal/pkg/errors"
)

func TestStatsUseCase_NotLoaded(t *testing.T) {
	env := newTestEnv(t, nil, false)

	_, err := env.stats.GetStatistics(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrDataNotLoaded)

	_, err = env.stats.RefreshStatistics(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrDataNotLoaded)
}

func TestStatsUseCase_Compute(t *testing.T) {
	env := newTestEnv(t, nil, true)

	stats, err := env.stats.GetStatistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 2, stats.ZipCodes)
	assert.Equal(t, 2, stats.Weeks)
	assert.Equal(t, 3, stats.Types)
	assert.Equal(t, env.dataset.Version(), stats.DataVersion)

	require.Len(t, stats.ByType, 3)
	assert.Equal(t, "A", stats.ByType[0].EventType)
	assert.Equal(t, 5, stats.ByType[0].Permits)

	// недельные суммы по ZIP: 5, 3, 2
	assert.Equal(t, 3, stats.Weekly.Count)
	assert.Equal(t, 2, stats.Weekly.Min)
	assert.Equal(t, 5, stats.Weekly.Max)
	assert.InDelta(t, 3.0, stats.Weekly.Percentiles["p50"], 1e-9)

	// total_permits границ: 8, 2, 0
	assert.Equal(t, 3, stats.AllTime.Count)
	assert.Equal(t, 8, stats.AllTime.Max)
	assert.Equal(t, []int{0, 0, 2, 2, 8, 8}, stats.Breaks)
	assert.Equal(t, []int{1, 0, 1, 0, 1, 0, 0}, stats.Buckets)
}

func TestStatsUseCase_Cache(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh cached stats returned", func(t *testing.T) {
		cacheRepo := &MockCacheRepository{}
		env := newTestEnv(t, cacheRepo, true)

		cached := &domain.Statistics{Records: 999, DataVersion: env.dataset.Version()}
		cacheRepo.On("GetStats", mock.Anything).Return(cached, nil).Once()

		stats, err := env.stats.GetStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 999, stats.Records)
		cacheRepo.AssertNotCalled(t, "SetStats", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale version recomputed", func(t *testing.T) {
		cacheRepo := &MockCacheRepository{}
		env := newTestEnv(t, cacheRepo, true)

		cacheRepo.On("GetStats", mock.Anything).Return(&domain.Statistics{Records: 999, DataVersion: "old"}, nil).Once()
		cacheRepo.On("SetStats", mock.Anything, mock.AnythingOfType("*domain.Statistics"), time.Hour).Return(nil).Once()

		stats, err := env.stats.GetStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Records)
		cacheRepo.AssertExpectations(t)
	})

	t.Run("cache failures ignored", func(t *testing.T) {
		cacheRepo := &MockCacheRepository{}
		env := newTestEnv(t, cacheRepo, true)

		cacheRepo.On("GetStats", mock.Anything).Return(nil, errors.New("redis down"))
		cacheRepo.On("SetStats", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

		stats, err := env.stats.GetStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Records)
	})

	t.Run("refresh bypasses cache read", func(t *testing.T) {
		cacheRepo := &MockCacheRepository{}
		env := newTestEnv(t, cacheRepo, true)

		cacheRepo.On("SetStats", mock.Anything, mock.Anything, time.Hour).Return(nil).Once()

		stats, err := env.stats.RefreshStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Records)
		cacheRepo.AssertNotCalled(t, "GetStats", mock.Anything)
		cacheRepo.AssertExpectations(t)
	})
}
