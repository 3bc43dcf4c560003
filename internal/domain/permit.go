package domain

import "fmt"

// PermitRecord - одна строка недельного датасета разрешений (ZIP x тип x неделя)
type PermitRecord struct {
	ZipCode     string   `json:"zip_code" db:"zip_code"`
	EventType   string   `json:"event_type" db:"event_type"`
	Year        int      `json:"year" db:"year"`
	Week        int      `json:"week" db:"week"`
	PermitCount int      `json:"permit_count" db:"permit_count"`
	Latitude    *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64 `json:"longitude,omitempty" db:"longitude"`
}

// WeekKey возвращает неделю, к которой относится запись
func (r PermitRecord) WeekKey() Week {
	return Week{Year: r.Year, Week: r.Week}
}

// TypeTotal - строка датасета total_by_type; используется только для перечисления типов
type TypeTotal struct {
	EventType string `json:"event_type" db:"event_type"`
	ZipCode   string `json:"zip_code,omitempty" db:"zip_code"`
	TypeCount int    `json:"type_count,omitempty" db:"type_count"`
}

// Week - недельный бакет (year, week)
type Week struct {
	Year int `json:"year" db:"year"`
	Week int `json:"week" db:"week"`
}

// Before сравнивает недели: сначала год, затем номер недели
func (w Week) Before(other Week) bool {
	if w.Year != other.Year {
		return w.Year < other.Year
	}
	return w.Week < other.Week
}

func (w Week) String() string {
	return fmt.Sprintf("%d-W%02d", w.Year, w.Week)
}

// PermitTypes строит канонический список типов: порядок первого появления, без дублей
func PermitTypes(totals []TypeTotal) []string {
	seen := make(map[string]struct{}, len(totals))
	types := make([]string, 0, len(totals))
	for _, t := range totals {
		if _, ok := seen[t.EventType]; ok {
			continue
		}
		seen[t.EventType] = struct{}{}
		types = append(types, t.EventType)
	}
	return types
}
