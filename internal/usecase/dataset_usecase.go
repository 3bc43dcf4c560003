package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/permit-map/internal/aggregator"
	"github.com/permit-map/internal/classifier"
	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/domain/repository"
	"github.com/permit-map/internal/pkg/metrics"
	"github.com/permit-map/internal/usecase/dto"
)

// Имена наборов данных в логах и метриках
const (
	datasetPermits    = "permits"
	datasetTypes      = "permit_types"
	datasetBoundaries = "boundaries"
)

// MapCachePrefix - префикс ключей кеша отрендеренных карт
const MapCachePrefix = "map:"

// DatasetUseCase загружает три коллекции и раздаёт их Aggregator и Classifier
type DatasetUseCase struct {
	repo       repository.DatasetRepository
	aggregator *aggregator.Aggregator
	classifier *classifier.Classifier
	cacheRepo  repository.CacheRepository
	metrics    *metrics.Metrics
	logger     *zap.Logger

	// loadMu сериализует загрузки: одновременный Reload не должен перемешать коллекции
	loadMu sync.Mutex

	mu               sync.RWMutex
	boundaries       []domain.ZipBoundary
	boundariesLoaded bool
	version          string
	lastReport       *domain.LoadReport
	loadedAt         time.Time
}

// NewDatasetUseCase создает новый экземпляр DatasetUseCase; cacheRepo и m могут быть nil
func NewDatasetUseCase(
	repo repository.DatasetRepository,
	agg *aggregator.Aggregator,
	cls *classifier.Classifier,
	cacheRepo repository.CacheRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DatasetUseCase {
	return &DatasetUseCase{
		repo:       repo,
		aggregator: agg,
		classifier: cls,
		cacheRepo:  cacheRepo,
		metrics:    m,
		logger:     logger,
	}
}

// Load параллельно загружает записи, типы и границы.
// Ошибка одной коллекции не мешает остальным: она логируется,
// а коллекция остаётся в прежнем состоянии (при первой загрузке - неинициализированной).
func (uc *DatasetUseCase) Load(ctx context.Context) (*domain.LoadReport, error) {
	uc.loadMu.Lock()
	defer uc.loadMu.Unlock()

	start := time.Now()

	var (
		records    []domain.PermitRecord
		totals     []domain.TypeTotal
		boundaries []domain.ZipBoundary

		permitsOK, typesOK, boundariesOK bool

		errsMu   sync.Mutex
		loadErrs []error
	)

	fail := func(dataset string, err error) {
		uc.logger.Error("Dataset load failed",
			zap.String("dataset", dataset),
			zap.Error(err))
		errsMu.Lock()
		loadErrs = append(loadErrs, fmt.Errorf("%s: %w", dataset, err))
		errsMu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		t := time.Now()
		r, err := uc.repo.LoadPermits(ctx)
		uc.metrics.DatasetLoad(datasetPermits, time.Since(t), err == nil)
		if err != nil {
			fail(datasetPermits, err)
			return nil
		}
		records, permitsOK = r, true
		return nil
	})
	g.Go(func() error {
		t := time.Now()
		r, err := uc.repo.LoadPermitTypes(ctx)
		uc.metrics.DatasetLoad(datasetTypes, time.Since(t), err == nil)
		if err != nil {
			fail(datasetTypes, err)
			return nil
		}
		totals, typesOK = r, true
		return nil
	})
	g.Go(func() error {
		t := time.Now()
		r, err := uc.repo.LoadBoundaries(ctx)
		uc.metrics.DatasetLoad(datasetBoundaries, time.Since(t), err == nil)
		if err != nil {
			fail(datasetBoundaries, err)
			return nil
		}
		boundaries, boundariesOK = r, true
		return nil
	})
	_ = g.Wait()

	report := domain.LoadReport{
		PermitsLoaded:    permitsOK,
		TypesLoaded:      typesOK,
		BoundariesLoaded: boundariesOK,
		Records:          len(records),
		Boundaries:       len(boundaries),
	}

	update := aggregator.Dataset{Records: records, HasRecords: permitsOK, HasTypes: typesOK}
	if typesOK {
		update.Types = domain.PermitTypes(totals)
		report.Types = len(update.Types)
	}

	// записи, типы, пороги, границы и версия меняются под одной блокировкой
	uc.mu.Lock()
	uc.aggregator.SetDataset(update)
	if boundariesOK {
		uc.classifier.SetBoundaryTotals(domain.BoundaryTotals(boundaries))
		uc.boundaries = boundaries
		uc.boundariesLoaded = true
	}
	if permitsOK || typesOK || boundariesOK {
		uc.version = uuid.NewString()
		uc.loadedAt = time.Now().UTC()
	}
	report.Version = uc.version
	report.Duration = time.Since(start)
	for _, err := range loadErrs {
		report.Errors = append(report.Errors, err.Error())
	}
	reportCopy := report
	uc.lastReport = &reportCopy
	uc.mu.Unlock()

	uc.metrics.DatasetState(uc.Ready(), uc.aggregator.Len())

	uc.logger.Info("Datasets loaded",
		zap.Bool("permits", report.PermitsLoaded),
		zap.Bool("types", report.TypesLoaded),
		zap.Bool("boundaries", report.BoundariesLoaded),
		zap.Int("records", report.Records),
		zap.Int("boundary_count", report.Boundaries),
		zap.String("version", report.Version),
		zap.Duration("duration", report.Duration))

	if len(loadErrs) > 0 {
		return &report, errors.Join(loadErrs...)
	}
	return &report, nil
}

// Reload повторяет Load и сбрасывает кешированные карты и статистику
func (uc *DatasetUseCase) Reload(ctx context.Context) (*domain.LoadReport, error) {
	report, err := uc.Load(ctx)
	uc.invalidateCache(ctx)
	return report, err
}

func (uc *DatasetUseCase) invalidateCache(ctx context.Context) {
	if uc.cacheRepo == nil {
		return
	}
	if err := uc.cacheRepo.DeleteByPrefix(ctx, MapCachePrefix); err != nil {
		uc.logger.Warn("Failed to invalidate map cache", zap.Error(err))
	}
	if err := uc.cacheRepo.Delete(ctx, repository.StatsCacheKey); err != nil {
		uc.logger.Warn("Failed to invalidate stats cache", zap.Error(err))
	}
}

// Ready - все три коллекции инициализированы
func (uc *DatasetUseCase) Ready() bool {
	uc.mu.RLock()
	loaded := uc.boundariesLoaded
	uc.mu.RUnlock()
	return loaded && uc.aggregator.Ready()
}

// DatasetView - согласованное состояние набора данных
type DatasetView struct {
	Boundaries []domain.ZipBoundary
	Version    string
	Ready      bool
}

// View вызывает fn, пока загрузка не может заменить коллекции.
// Aggregator и Classifier внутри fn видят ту же версию, что и Boundaries.
// fn не должна вызывать методы DatasetUseCase.
func (uc *DatasetUseCase) View(fn func(v DatasetView)) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()

	fn(DatasetView{
		Boundaries: uc.boundaries,
		Version:    uc.version,
		Ready:      uc.boundariesLoaded && uc.aggregator.Ready(),
	})
}

// Version - идентификатор текущего набора данных (меняется при каждой загрузке)
func (uc *DatasetUseCase) Version() string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.version
}

// Status описывает готовность коллекций
func (uc *DatasetUseCase) Status() *dto.DatasetStatusResponse {
	uc.mu.RLock()
	resp := &dto.DatasetStatusResponse{
		PermitsLoaded:    uc.aggregator.RecordsLoaded(),
		TypesLoaded:      uc.aggregator.TypesLoaded(),
		BoundariesLoaded: uc.boundariesLoaded,
		Version:          uc.version,
		QuantileBreaks:   []int(uc.classifier.Breaks(classifier.Quantile)),
	}
	if uc.lastReport != nil {
		r := *uc.lastReport
		resp.LastLoad = &r
	}
	if !uc.loadedAt.IsZero() {
		t := uc.loadedAt
		resp.LoadedAt = &t
	}
	uc.mu.RUnlock()

	resp.Ready = resp.PermitsLoaded && resp.TypesLoaded && resp.BoundariesLoaded
	if resp.QuantileBreaks == nil {
		resp.QuantileBreaks = []int{}
	}
	return resp
}
