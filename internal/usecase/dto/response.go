package dto

import (
	"encoding/json"
	"time"

	"github.com/permit-map/internal/classifier"
	"github.com/permit-map/internal/domain"
)

// FilterResponse - текущее состояние фильтра
type FilterResponse struct {
	Window   int      `json:"window"`
	Mode     string   `json:"mode"`
	Resolved bool     `json:"resolved"`
	Types    []string `json:"types"`
	AllTypes bool     `json:"all_types"`
}

// AggregateResponse - агрегат по ZIP для фильтра
type AggregateResponse struct {
	Filter FilterResponse        `json:"filter"`
	Rows   []domain.AggregateRow `json:"rows"`
	Total  int                   `json:"total"`
}

// RenderedMap - стилизованный GeoJSON FeatureCollection
type RenderedMap struct {
	GeoJSON  json.RawMessage `json:"geojson"`
	Filter   FilterResponse  `json:"filter"`
	Policy   string          `json:"policy"`
	Features int             `json:"features"`
	Cached   bool            `json:"cached"`
}

// LegendResponse - легенда для режима
type LegendResponse struct {
	Window int                      `json:"window"`
	Mode   string                   `json:"mode"`
	Policy string                   `json:"policy"`
	Breaks []int                    `json:"breaks"`
	Items  []classifier.LegendEntry `json:"items"`
}

// WeekOption - позиция ползунка недель
type WeekOption struct {
	Index int    `json:"index"`
	Year  int    `json:"year,omitempty"`
	Week  int    `json:"week,omitempty"`
	Label string `json:"label"`
}

// WeeksResponse - позиции ползунка; индекс 0 всегда "All Time"
type WeeksResponse struct {
	Weeks []WeekOption `json:"weeks"`
	Total int          `json:"total"`
}

// PermitTypesResponse - канонический список типов
type PermitTypesResponse struct {
	Types []string `json:"types"`
	Total int      `json:"total"`
}

// MapConfigResponse - параметры карты для фронтенда
type MapConfigResponse struct {
	Center         domain.Point `json:"center"`
	Zoom           int          `json:"zoom"`
	MinZoom        int          `json:"min_zoom"`
	MaxZoom        int          `json:"max_zoom"`
	Palette        []string     `json:"palette"`
	AbsoluteBreaks []int        `json:"absolute_breaks"`
}

// DatasetStatusResponse - готовность коллекций
type DatasetStatusResponse struct {
	Ready            bool               `json:"ready"`
	PermitsLoaded    bool               `json:"permits_loaded"`
	TypesLoaded      bool               `json:"types_loaded"`
	BoundariesLoaded bool               `json:"boundaries_loaded"`
	Version          string             `json:"version,omitempty"`
	QuantileBreaks   []int              `json:"quantile_breaks"`
	LastLoad         *domain.LoadReport `json:"last_load,omitempty"`
	LoadedAt         *time.Time         `json:"loaded_at,omitempty"`
}

// HealthResponse - ответ liveness
type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}
