package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/permit-map/internal/aggregator"
	"github.com/permit-map/internal/analysis"
	"github.com/permit-map/internal/classifier"
	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/domain/repository"
	"github.com/permit-map/internal/pkg/errors"
	"github.com/permit-map/internal/pkg/metrics"
)

// StatsUseCase обрабатывает бизнес-логику для статистики
type StatsUseCase struct {
	aggregator *aggregator.Aggregator
	classifier *classifier.Classifier
	dataset    DatasetState
	cacheRepo  repository.CacheRepository
	ttl        time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewStatsUseCase создает новый экземпляр StatsUseCase; cacheRepo и m могут быть nil
func NewStatsUseCase(
	agg *aggregator.Aggregator,
	cls *classifier.Classifier,
	dataset DatasetState,
	cacheRepo repository.CacheRepository,
	ttl time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *StatsUseCase {
	return &StatsUseCase{
		aggregator: agg,
		classifier: cls,
		dataset:    dataset,
		cacheRepo:  cacheRepo,
		ttl:        ttl,
		metrics:    m,
		logger:     logger,
	}
}

// GetStatistics возвращает статистику, используя кеш когда возможно
func (uc *StatsUseCase) GetStatistics(ctx context.Context) (*domain.Statistics, error) {
	if !uc.dataset.Ready() {
		return nil, errors.ErrDataNotLoaded
	}

	if uc.cacheRepo != nil {
		cached, err := uc.cacheRepo.GetStats(ctx)
		if err != nil {
			uc.logger.Warn("Failed to get stats from cache", zap.Error(err))
		}
		// статистика прошлой версии данных не отдаётся
		if cached != nil && cached.DataVersion == uc.dataset.Version() {
			uc.metrics.CacheHit("stats")
			uc.logger.Debug("Statistics fetched from cache")
			return cached, nil
		}
		uc.metrics.CacheMiss("stats")
	}

	return uc.compute(ctx), nil
}

// RefreshStatistics пересчитывает статистику в обход кеша
func (uc *StatsUseCase) RefreshStatistics(ctx context.Context) (*domain.Statistics, error) {
	if !uc.dataset.Ready() {
		return nil, errors.ErrDataNotLoaded
	}

	uc.logger.Info("Refreshing statistics")
	stats := uc.compute(ctx)
	uc.logger.Info("Statistics refreshed", zap.String("version", stats.DataVersion))
	return stats, nil
}

func (uc *StatsUseCase) compute(ctx context.Context) *domain.Statistics {
	var stats *domain.Statistics
	uc.dataset.View(func(v DatasetView) {
		stats = uc.describe(v)
	})

	if uc.cacheRepo != nil {
		if err := uc.cacheRepo.SetStats(ctx, stats, uc.ttl); err != nil {
			uc.logger.Warn("Failed to cache stats", zap.Error(err))
		}
	}

	return stats
}

// describe считает статистику; вызывается внутри DatasetUseCase.View
func (uc *StatsUseCase) describe(v DatasetView) *domain.Statistics {
	records := uc.aggregator.Records()
	totals := domain.BoundaryTotals(v.Boundaries)

	breaks := uc.classifier.Breaks(classifier.Quantile)
	stats := &domain.Statistics{
		Records:     len(records),
		ZipCodes:    analysis.DistinctZipCodes(records),
		Weeks:       analysis.DistinctWeeks(records),
		Types:       len(uc.aggregator.PermitTypes()),
		ByType:      analysis.TypeDistribution(records),
		Weekly:      analysis.Describe(analysis.WeeklyZipTotals(records), analysis.DefaultPercentiles),
		AllTime:     analysis.Describe(totals, analysis.DefaultPercentiles),
		Breaks:      []int(breaks),
		LastUpdated: time.Now().UTC(),
		DataVersion: v.Version,
	}
	if stats.Breaks == nil {
		stats.Breaks = []int{}
	}
	stats.Buckets = analysis.BucketCounts(totals, func(total int) int {
		return classifier.Bucket(total, breaks)
	}, classifier.BucketCount)
	return stats
}
