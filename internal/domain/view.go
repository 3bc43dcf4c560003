package domain

import "sort"

// ViewMode - режим отображения карты: за всё время или за одну неделю.
// Нулевое значение соответствует AllTime.
type ViewMode struct {
	week   Week
	single bool
}

// AllTime возвращает режим "за всё время"
func AllTime() ViewMode {
	return ViewMode{}
}

// WeekView возвращает режим одной недели
func WeekView(w Week) ViewMode {
	return ViewMode{week: w, single: true}
}

// IsAllTime проверяет режим "за всё время"
func (m ViewMode) IsAllTime() bool {
	return !m.single
}

// Week возвращает неделю режима; ok=false для AllTime
func (m ViewMode) Week() (Week, bool) {
	return m.week, m.single
}

func (m ViewMode) String() string {
	if !m.single {
		return "all-time"
	}
	return m.week.String()
}

// AllTimeWindow - индекс окна "за всё время" (ползунок в позиции 0)
const AllTimeWindow = 0

// Filter - состояние фильтра: окно (0 = всё время, 1..N = индекс в отсортированном
// списке недель) и множество выбранных типов
type Filter struct {
	Window int
	Types  map[string]struct{}
}

// NewFilter создает фильтр из списка типов; дубли схлопываются
func NewFilter(window int, types []string) Filter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return Filter{Window: window, Types: set}
}

// Has проверяет, выбран ли тип
func (f Filter) Has(eventType string) bool {
	_, ok := f.Types[eventType]
	return ok
}

// TypeList возвращает выбранные типы в порядке канонического списка;
// неизвестные типы добавляются в конец в порядке сортировки
func (f Filter) TypeList(canonical []string) []string {
	out := make([]string, 0, len(f.Types))
	known := make(map[string]struct{}, len(canonical))
	for _, t := range canonical {
		known[t] = struct{}{}
		if f.Has(t) {
			out = append(out, t)
		}
	}
	extra := make([]string, 0)
	for t := range f.Types {
		if _, ok := known[t]; !ok {
			extra = append(extra, t)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Clone возвращает независимую копию фильтра
func (f Filter) Clone() Filter {
	set := make(map[string]struct{}, len(f.Types))
	for t := range f.Types {
		set[t] = struct{}{}
	}
	return Filter{Window: f.Window, Types: set}
}

// AggregateRow - агрегат по одному ZIP для текущего фильтра
type AggregateRow struct {
	ZipCode     string   `json:"zip_code"`
	PermitCount int      `json:"permit_count"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}
