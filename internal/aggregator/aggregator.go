// Package aggregator holds the permit records together with the current
// filter and derives the per-ZIP aggregate view from them.
package aggregator

import (
	"sort"
	"sync"

	"github.com/permit-map/internal/domain"
	"go.uber.org/zap"
)

// Aggregator - единственный владелец записей и состояния фильтра.
// Все остальные компоненты получают только производные результаты.
type Aggregator struct {
	mu sync.RWMutex

	records []domain.PermitRecord
	weeks   []domain.Week
	types   []string
	filter  domain.Filter

	recordsLoaded bool
	typesLoaded   bool

	logger *zap.Logger
}

// New создает пустой Aggregator; до загрузки данных все запросы возвращают пустой результат
func New(logger *zap.Logger) *Aggregator {
	return &Aggregator{
		filter: domain.NewFilter(domain.AllTimeWindow, nil),
		logger: logger,
	}
}

// Dataset - новые коллекции для SetDataset. Коллекция с Has*=false остаётся прежней.
type Dataset struct {
	Records    []domain.PermitRecord
	HasRecords bool
	Types      []string
	HasTypes   bool
}

// SetDataset заменяет записи и канонический список типов под одной блокировкой.
// Новые записи сбрасывают окно в "за всё время": старые индексы недель больше не валидны.
// Новый список типов выбирает все типы.
func (a *Aggregator) SetDataset(d Dataset) {
	var weeks []domain.Week
	if d.HasRecords {
		weeks = distinctWeeks(d.Records)
	}
	var canonical []string
	if d.HasTypes {
		canonical = make([]string, len(d.Types))
		copy(canonical, d.Types)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if d.HasRecords {
		a.records = d.Records
		a.weeks = weeks
		a.recordsLoaded = true
		a.filter = domain.Filter{Window: domain.AllTimeWindow, Types: a.filter.Types}

		a.logger.Info("Permit records loaded",
			zap.Int("records", len(d.Records)),
			zap.Int("weeks", len(weeks)))
	}
	if d.HasTypes {
		a.types = canonical
		a.typesLoaded = true
		a.filter = domain.NewFilter(a.filter.Window, canonical)

		a.logger.Info("Permit types loaded", zap.Int("types", len(canonical)))
	}
}

// SetRecords заменяет только коллекцию записей
func (a *Aggregator) SetRecords(records []domain.PermitRecord) {
	a.SetDataset(Dataset{Records: records, HasRecords: true})
}

// SetPermitTypes заменяет только канонический список типов
func (a *Aggregator) SetPermitTypes(types []string) {
	a.SetDataset(Dataset{Types: types, HasTypes: true})
}

// Ready - записи и типы загружены
func (a *Aggregator) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.recordsLoaded && a.typesLoaded
}

// RecordsLoaded - коллекция записей инициализирована
func (a *Aggregator) RecordsLoaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.recordsLoaded
}

// TypesLoaded - список типов инициализирован
func (a *Aggregator) TypesLoaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.typesLoaded
}

// SetFilter атомарно заменяет окно и набор типов.
// Значения не валидируются: неизвестные типы ничего не находят,
// индекс вне диапазона даёт пустое представление.
func (a *Aggregator) SetFilter(window int, types []string) {
	filter := domain.NewFilter(window, types)

	a.mu.Lock()
	a.filter = filter
	a.mu.Unlock()

	a.logger.Debug("Filter updated",
		zap.Int("window", window),
		zap.Int("types", len(filter.Types)))
}

// Filter возвращает копию текущего фильтра
func (a *Aggregator) Filter() domain.Filter {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.filter.Clone()
}

// PermitTypes возвращает канонический список типов
func (a *Aggregator) PermitTypes() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]string, len(a.types))
	copy(out, a.types)
	return out
}

// Len - число загруженных записей
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// Records возвращает копию загруженных записей
func (a *Aggregator) Records() []domain.PermitRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.PermitRecord, len(a.records))
	copy(out, a.records)
	return out
}

// ListAvailableWeeks возвращает различные недели, отсортированные по (year, week).
// Индекс ползунка i (1..N) соответствует элементу i-1.
func (a *Aggregator) ListAvailableWeeks() []domain.Week {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.Week, len(a.weeks))
	copy(out, a.weeks)
	return out
}

// ResolveWindow переводит индекс окна в режим отображения.
// ok=false, если индекс не соответствует ни одной неделе.
func (a *Aggregator) ResolveWindow(window int) (domain.ViewMode, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return resolveWindow(a.weeks, window)
}

func resolveWindow(weeks []domain.Week, window int) (domain.ViewMode, bool) {
	if window == domain.AllTimeWindow {
		return domain.AllTime(), true
	}
	if window < 1 || window > len(weeks) {
		return domain.ViewMode{}, false
	}
	return domain.WeekView(weeks[window-1]), true
}

// AllTypesSelected проверяет, что фильтр включает весь канонический список типов.
// Пустой выбор или пустой канонический список не считаются "все типы".
func (a *Aggregator) AllTypesSelected(filter domain.Filter) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.typesLoaded || len(a.types) == 0 || len(filter.Types) == 0 {
		return false
	}
	for _, t := range a.types {
		if !filter.Has(t) {
			return false
		}
	}
	return true
}

// GetAggregateView считает агрегат для текущего фильтра
func (a *Aggregator) GetAggregateView() []domain.AggregateRow {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.aggregateLocked(a.filter)
}

// AggregateFor считает агрегат для произвольного фильтра, не меняя текущий
func (a *Aggregator) AggregateFor(filter domain.Filter) []domain.AggregateRow {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.aggregateLocked(filter)
}

func (a *Aggregator) aggregateLocked(filter domain.Filter) []domain.AggregateRow {
	rows := make([]domain.AggregateRow, 0)
	if !a.recordsLoaded || len(filter.Types) == 0 {
		return rows
	}

	mode, ok := resolveWindow(a.weeks, filter.Window)
	if !ok {
		return rows
	}
	return Aggregate(a.records, mode, filter)
}

// Aggregate группирует записи по ZIP для режима и фильтра, суммируя permit_count.
// Строки идут в порядке первого появления ZIP; координаты берутся из первой записи группы.
func Aggregate(records []domain.PermitRecord, mode domain.ViewMode, filter domain.Filter) []domain.AggregateRow {
	week, single := mode.Week()
	index := make(map[string]int)
	rows := make([]domain.AggregateRow, 0)

	for _, r := range records {
		if !filter.Has(r.EventType) {
			continue
		}
		if single && r.WeekKey() != week {
			continue
		}

		i, ok := index[r.ZipCode]
		if !ok {
			i = len(rows)
			index[r.ZipCode] = i
			rows = append(rows, domain.AggregateRow{
				ZipCode:   r.ZipCode,
				Latitude:  r.Latitude,
				Longitude: r.Longitude,
			})
		}
		rows[i].PermitCount += r.PermitCount
	}

	return rows
}

// Counts сворачивает агрегат в map ZIP -> количество
func Counts(rows []domain.AggregateRow) map[string]int {
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.ZipCode] += r.PermitCount
	}
	return counts
}

func distinctWeeks(records []domain.PermitRecord) []domain.Week {
	seen := make(map[domain.Week]struct{})
	weeks := make([]domain.Week, 0)
	for _, r := range records {
		w := r.WeekKey()
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		weeks = append(weeks, w)
	}

	sort.Slice(weeks, func(i, j int) bool {
		return weeks[i].Before(weeks[j])
	})
	return weeks
}
