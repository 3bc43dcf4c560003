package source

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/pkg/utils"
)

// DefaultPostalCodeField - поле почтового индекса в свойствах GeoJSON по умолчанию
const DefaultPostalCodeField = "postalCode"

// postalCodeFallbacks - альтернативные имена поля индекса в разных выгрузках границ
var postalCodeFallbacks = []string{"ZIP_CODE", "zipcode", "postal_code"}

type rawPermit struct {
	ZipCodes    interface{} `json:"ZipCode(s)"`
	EventType   string      `json:"EventType"`
	Year        float64     `json:"year"`
	Week        float64     `json:"week"`
	PermitCount *float64    `json:"permit_count"`
	Latitude    *float64    `json:"Latitude"`
	Longitude   *float64    `json:"Longitude"`
}

type rawTypeTotal struct {
	EventType string      `json:"EventType"`
	ZipCodes  interface{} `json:"ZipCode(s)"`
	TypeCount *float64    `json:"type_count"`
}

// PermitStats - счётчики нормализации при декодировании записей
type PermitStats struct {
	Raw      int
	Expanded int
	Dropped  int
}

// DecodePermits разбирает JSON-массив недельных записей.
// Мульти-ZIP значения разворачиваются в отдельные записи с полным счётчиком,
// записи без индекса отбрасываются.
func DecodePermits(data []byte) ([]domain.PermitRecord, PermitStats, error) {
	var raw []rawPermit
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, PermitStats{}, fmt.Errorf("decode permits: %w", err)
	}

	stats := PermitStats{Raw: len(raw)}
	records := make([]domain.PermitRecord, 0, len(raw))
	for _, r := range raw {
		zips := domain.SplitZipCodes(formatCode(r.ZipCodes))
		if len(zips) == 0 {
			stats.Dropped++
			continue
		}
		if len(zips) > 1 {
			stats.Expanded += len(zips) - 1
		}

		lat, lon := r.Latitude, r.Longitude
		if lat == nil || lon == nil || !utils.ValidateCoordinates(*lat, *lon) {
			lat, lon = nil, nil
		}

		for _, zip := range zips {
			records = append(records, domain.PermitRecord{
				ZipCode:     zip,
				EventType:   strings.TrimSpace(r.EventType),
				Year:        int(r.Year),
				Week:        int(r.Week),
				PermitCount: domain.NormalizeCount(r.PermitCount),
				Latitude:    lat,
				Longitude:   lon,
			})
		}
	}

	return records, stats, nil
}

// DecodeTypeTotals разбирает total_by_type; записи без EventType пропускаются
func DecodeTypeTotals(data []byte) ([]domain.TypeTotal, error) {
	var raw []rawTypeTotal
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode permit types: %w", err)
	}

	totals := make([]domain.TypeTotal, 0, len(raw))
	for _, r := range raw {
		eventType := strings.TrimSpace(r.EventType)
		if eventType == "" {
			continue
		}
		totals = append(totals, domain.TypeTotal{
			EventType: eventType,
			ZipCode:   strings.TrimSpace(formatCode(r.ZipCodes)),
			TypeCount: domain.NormalizeCount(r.TypeCount),
		})
	}
	return totals, nil
}

// DecodeBoundaries разбирает GeoJSON FeatureCollection границ ZIP.
// Индекс берётся из field (или из запасных полей), дубли индекса: побеждает первый.
func DecodeBoundaries(data []byte, field string) ([]domain.ZipBoundary, int, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, fmt.Errorf("decode boundaries: %w", err)
	}
	if field == "" {
		field = DefaultPostalCodeField
	}

	skipped := 0
	seen := make(map[string]struct{}, len(fc.Features))
	boundaries := make([]domain.ZipBoundary, 0, len(fc.Features))
	for _, f := range fc.Features {
		code := postalCode(f.Properties, field)
		if code == "" {
			skipped++
			continue
		}
		if _, dup := seen[code]; dup {
			skipped++
			continue
		}
		seen[code] = struct{}{}

		boundaries = append(boundaries, domain.ZipBoundary{
			PostalCode:   code,
			TotalPermits: totalPermits(f.Properties["total_permits"]),
			Geometry:     f.Geometry,
			Properties:   map[string]interface{}(f.Properties),
		})
	}

	return boundaries, skipped, nil
}

func postalCode(props geojson.Properties, field string) string {
	if code := strings.TrimSpace(formatCode(props[field])); code != "" {
		return code
	}
	for _, alt := range postalCodeFallbacks {
		if alt == field {
			continue
		}
		if code := strings.TrimSpace(formatCode(props[alt])); code != "" {
			return code
		}
	}
	return ""
}

// formatCode приводит строковый или числовой индекс к строке; 10001.0 -> "10001"
func formatCode(v interface{}) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		if c == math.Trunc(c) {
			return strconv.FormatInt(int64(c), 10)
		}
		return strconv.FormatFloat(c, 'f', -1, 64)
	case json.Number:
		return c.String()
	default:
		return ""
	}
}

func totalPermits(v interface{}) int {
	switch c := v.(type) {
	case float64:
		return domain.NormalizeCount(&c)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0
		}
		return domain.NormalizeCount(&f)
	default:
		return 0
	}
}
