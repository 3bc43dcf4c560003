package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/permit-map/internal/aggregator"
	"github.com/permit-map/internal/classifier"
	"github.com/permit-map/internal/config"
	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/domain/repository"
	"github.com/permit-map/internal/pkg/errors"
	"github.com/permit-map/internal/pkg/metrics"
	"github.com/permit-map/internal/pkg/utils"
	"github.com/permit-map/internal/pkg/validator"
	"github.com/permit-map/internal/usecase/dto"
)

// Стиль полигонов
const (
	polygonWeight      = 1
	polygonOpacity     = 1
	polygonBorderColor = "white"
	polygonFillOpacity = 0.7
)

// AllTimeLabel - подпись позиции 0 ползунка недель
const AllTimeLabel = "All Time"

// DatasetState - загруженные границы и версия набора данных
type DatasetState interface {
	Ready() bool
	Version() string
	View(fn func(v DatasetView))
}

// MapUseCase управляет фильтром и рендерит раскрашенные границы ZIP
type MapUseCase struct {
	aggregator *aggregator.Aggregator
	classifier *classifier.Classifier
	dataset    DatasetState
	cacheRepo  repository.CacheRepository
	mapCfg     config.MapConfig
	cacheTTL   time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewMapUseCase создает новый экземпляр MapUseCase; cacheRepo и m могут быть nil
func NewMapUseCase(
	agg *aggregator.Aggregator,
	cls *classifier.Classifier,
	dataset DatasetState,
	cacheRepo repository.CacheRepository,
	mapCfg config.MapConfig,
	cacheTTL time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *MapUseCase {
	return &MapUseCase{
		aggregator: agg,
		classifier: cls,
		dataset:    dataset,
		cacheRepo:  cacheRepo,
		mapCfg:     mapCfg,
		cacheTTL:   cacheTTL,
		metrics:    m,
		logger:     logger,
	}
}

// SetFilter заменяет текущий фильтр
func (uc *MapUseCase) SetFilter(req dto.FilterRequest) (*dto.FilterResponse, error) {
	if err := validator.Validate(req); err != nil {
		return nil, errors.ErrInvalidFilter.WithDetails(validator.Describe(err))
	}

	uc.aggregator.SetFilter(req.Window, req.Types)
	resp := uc.describeFilter(uc.aggregator.Filter())
	return &resp, nil
}

// CurrentFilter возвращает текущий фильтр
func (uc *MapUseCase) CurrentFilter() *dto.FilterResponse {
	resp := uc.describeFilter(uc.aggregator.Filter())
	return &resp
}

// AggregateView считает агрегат по ZIP для текущего фильтра или переопределения q
func (uc *MapUseCase) AggregateView(ctx context.Context, q *dto.ViewQuery) (*dto.AggregateResponse, error) {
	filter, err := uc.resolveFilter(q)
	if err != nil {
		return nil, err
	}

	var (
		rows []domain.AggregateRow
		desc dto.FilterResponse
	)
	uc.dataset.View(func(v DatasetView) {
		desc = uc.describeFilter(filter)
		if !v.Ready {
			rows = make([]domain.AggregateRow, 0)
			return
		}
		start := time.Now()
		rows = uc.aggregator.AggregateFor(filter)
		uc.metrics.Aggregation(time.Since(start))
	})

	return &dto.AggregateResponse{
		Filter: desc,
		Rows:   rows,
		Total:  len(rows),
	}, nil
}

// RenderMap строит GeoJSON FeatureCollection: по одному объекту на границу ZIP
// со стилем и цветом бакета. До загрузки данных коллекция пустая.
func (uc *MapUseCase) RenderMap(ctx context.Context, q *dto.ViewQuery) (*dto.RenderedMap, error) {
	filter, err := uc.resolveFilter(q)
	if err != nil {
		return nil, err
	}
	version := uc.dataset.Version()
	if uc.dataset.Ready() {
		if cached := uc.fromCache(ctx, uc.cacheKey(version, filter)); cached != nil {
			return cached, nil
		}
	}

	var (
		rendered  *dto.RenderedMap
		renderErr error
		ready     bool
	)
	uc.dataset.View(func(v DatasetView) {
		version, ready = v.Version, v.Ready
		desc := uc.describeFilter(filter)
		vm := uc.resolveView(filter)
		if !v.Ready {
			rendered, renderErr = emptyMap(desc, vm.policy())
			return
		}
		rendered, renderErr = uc.render(v.Boundaries, vm, desc)
	})
	if renderErr != nil {
		uc.logger.Error("Failed to render map", zap.Error(renderErr))
		return nil, renderErr
	}
	if ready {
		uc.toCache(ctx, uc.cacheKey(version, filter), rendered)
	}
	return rendered, nil
}

// render раскрашивает границы; вызывается внутри DatasetUseCase.View
func (uc *MapUseCase) render(boundaries []domain.ZipBoundary, vm viewMode, desc dto.FilterResponse) (*dto.RenderedMap, error) {
	counts, fromTotals := uc.counts(vm)

	fc := geojson.NewFeatureCollection()
	for _, b := range boundaries {
		count := b.TotalPermits
		if !fromTotals {
			count = counts[b.PostalCode]
		}
		bucket := uc.classify(count, vm)

		f := geojson.NewFeature(b.Geometry)
		f.Properties = geojson.Properties{
			"postalCode":   b.PostalCode,
			"permit_count": count,
			"bucket":       bucket,
			"fillColor":    uc.classifier.Color(bucket),
			"weight":       polygonWeight,
			"opacity":      polygonOpacity,
			"color":        polygonBorderColor,
			"fillOpacity":  polygonFillOpacity,
			"popup":        vm.popup(b.PostalCode, count),
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal map: %w", err)
	}

	uc.logger.Debug("Map rendered",
		zap.String("mode", vm.label()),
		zap.Int("features", len(fc.Features)),
		zap.Bool("boundary_totals", fromTotals))

	return &dto.RenderedMap{
		GeoJSON:  data,
		Filter:   desc,
		Policy:   vm.policy().String(),
		Features: len(fc.Features),
	}, nil
}

func emptyMap(desc dto.FilterResponse, policy classifier.Policy) (*dto.RenderedMap, error) {
	data, err := geojson.NewFeatureCollection().MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal empty map: %w", err)
	}
	return &dto.RenderedMap{GeoJSON: data, Filter: desc, Policy: policy.String()}, nil
}

// counts возвращает значения для раскраски. Для "всё время" со всеми типами
// используются предрасчитанные total_permits границ (fromTotals=true).
func (uc *MapUseCase) counts(vm viewMode) (map[string]int, bool) {
	if vm.resolved && vm.mode.IsAllTime() && uc.aggregator.AllTypesSelected(vm.filter) {
		return nil, true
	}

	start := time.Now()
	rows := uc.aggregator.AggregateFor(vm.filter)
	uc.metrics.Aggregation(time.Since(start))
	return aggregator.Counts(rows), false
}

func (uc *MapUseCase) classify(count int, vm viewMode) int {
	if !vm.resolved {
		return uc.classifier.Classify(count, classifier.Absolute)
	}
	return uc.classifier.ClassifyMode(count, vm.mode)
}

// Legend строит легенду для окна; nil - текущее окно фильтра
func (uc *MapUseCase) Legend(window *int) *dto.LegendResponse {
	filter := uc.aggregator.Filter()
	if window != nil {
		filter.Window = *window
	}
	vm := uc.resolveView(filter)
	policy := vm.policy()

	breaks := []int(uc.classifier.Breaks(policy))
	if breaks == nil {
		breaks = []int{}
	}

	return &dto.LegendResponse{
		Window: filter.Window,
		Mode:   vm.label(),
		Policy: policy.String(),
		Breaks: breaks,
		Items:  uc.classifier.Legend(policy),
	}
}

// Weeks возвращает позиции ползунка: 0 - "All Time", 1..N - недели по возрастанию
func (uc *MapUseCase) Weeks() *dto.WeeksResponse {
	weeks := uc.aggregator.ListAvailableWeeks()

	options := make([]dto.WeekOption, 0, len(weeks)+1)
	options = append(options, dto.WeekOption{Index: domain.AllTimeWindow, Label: AllTimeLabel})
	for i, w := range weeks {
		options = append(options, dto.WeekOption{
			Index: i + 1,
			Year:  w.Year,
			Week:  w.Week,
			Label: utils.WeekLabel(w.Year, w.Week),
		})
	}

	return &dto.WeeksResponse{Weeks: options, Total: len(weeks)}
}

// PermitTypes возвращает канонический список типов
func (uc *MapUseCase) PermitTypes() *dto.PermitTypesResponse {
	types := uc.aggregator.PermitTypes()
	return &dto.PermitTypesResponse{Types: types, Total: len(types)}
}

// MapConfig возвращает центр, зум и палитру карты
func (uc *MapUseCase) MapConfig() *dto.MapConfigResponse {
	palette := uc.classifier.Palette()
	return &dto.MapConfigResponse{
		Center:         domain.Point{Lat: uc.mapCfg.CenterLat, Lon: uc.mapCfg.CenterLon},
		Zoom:           uc.mapCfg.Zoom,
		MinZoom:        uc.mapCfg.MinZoom,
		MaxZoom:        uc.mapCfg.MaxZoom,
		Palette:        palette[:],
		AbsoluteBreaks: append([]int(nil), classifier.AbsoluteBreaks...),
	}
}

func (uc *MapUseCase) resolveFilter(q *dto.ViewQuery) (domain.Filter, error) {
	filter := uc.aggregator.Filter()
	if q == nil {
		return filter, nil
	}
	if err := validator.Validate(q); err != nil {
		return domain.Filter{}, errors.ErrInvalidFilter.WithDetails(validator.Describe(err))
	}
	if q.Window != nil {
		filter.Window = *q.Window
	}
	if q.TypesSet {
		filter = domain.NewFilter(filter.Window, q.Types)
	}
	return filter, nil
}

func (uc *MapUseCase) describeFilter(filter domain.Filter) dto.FilterResponse {
	vm := uc.resolveView(filter)
	return dto.FilterResponse{
		Window:   filter.Window,
		Mode:     vm.label(),
		Resolved: vm.resolved,
		Types:    filter.TypeList(uc.aggregator.PermitTypes()),
		AllTypes: uc.aggregator.AllTypesSelected(filter),
	}
}

// viewMode - фильтр, окно которого переведено в режим отображения
type viewMode struct {
	filter   domain.Filter
	mode     domain.ViewMode
	resolved bool
}

func (uc *MapUseCase) resolveView(filter domain.Filter) viewMode {
	mode, ok := uc.aggregator.ResolveWindow(filter.Window)
	return viewMode{filter: filter, mode: mode, resolved: ok}
}

// policy: неразрешённое окно раскрашивается по недельной шкале
func (v viewMode) policy() classifier.Policy {
	if !v.resolved {
		return classifier.Absolute
	}
	return classifier.PolicyFor(v.mode)
}

func (v viewMode) label() string {
	if !v.resolved {
		return "unresolved"
	}
	return v.mode.String()
}

func (v viewMode) popup(zip string, count int) string {
	if v.resolved && v.mode.IsAllTime() {
		return fmt.Sprintf("ZIP Code: %s\nTotal Permits: %d", zip, count)
	}
	return fmt.Sprintf("ZIP Code: %s\nWeekly Permits: %d", zip, count)
}

// cacheKey: map:<version>:<window>:<hash выбранных типов>
func (uc *MapUseCase) cacheKey(version string, filter domain.Filter) string {
	types := make([]string, 0, len(filter.Types))
	for t := range filter.Types {
		types = append(types, t)
	}
	sort.Strings(types)

	sum := sha1.Sum([]byte(strings.Join(types, "\x00")))
	return MapCachePrefix + version + ":" + strconv.Itoa(filter.Window) + ":" + hex.EncodeToString(sum[:])
}

func (uc *MapUseCase) fromCache(ctx context.Context, key string) *dto.RenderedMap {
	if uc.cacheRepo == nil {
		return nil
	}

	data, err := uc.cacheRepo.Get(ctx, key)
	if err != nil {
		uc.logger.Warn("Failed to read map from cache", zap.String("key", key), zap.Error(err))
		return nil
	}
	if data == nil {
		uc.metrics.CacheMiss("map")
		return nil
	}

	var rendered dto.RenderedMap
	if err := json.Unmarshal(data, &rendered); err != nil {
		uc.logger.Warn("Corrupted map cache entry", zap.String("key", key), zap.Error(err))
		return nil
	}
	uc.metrics.CacheHit("map")
	rendered.Cached = true
	return &rendered
}

func (uc *MapUseCase) toCache(ctx context.Context, key string, rendered *dto.RenderedMap) {
	if uc.cacheRepo == nil {
		return
	}

	data, err := json.Marshal(rendered)
	if err != nil {
		uc.logger.Warn("Failed to marshal map for cache", zap.Error(err))
		return
	}
	if err := uc.cacheRepo.Set(ctx, key, data, uc.cacheTTL); err != nil {
		uc.logger.Warn("Failed to cache map", zap.String("key", key), zap.Error(err))
	}
}
