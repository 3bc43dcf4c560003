package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/domain/repository"
	"github.com/permit-map/internal/pkg/utils"
)

type datasetRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewDatasetRepository создает источник датасетов поверх PostgreSQL/PostGIS
func NewDatasetRepository(db *DB) repository.DatasetRepository {
	return &datasetRepository{
		db:     db.DB,
		logger: db.logger,
	}
}

type permitRow struct {
	ZipCodes    string          `db:"zip_codes"`
	EventType   string          `db:"event_type"`
	Year        int             `db:"year"`
	Week        int             `db:"week"`
	PermitCount sql.NullFloat64 `db:"permit_count"`
	Latitude    sql.NullFloat64 `db:"latitude"`
	Longitude   sql.NullFloat64 `db:"longitude"`
}

type typeRow struct {
	EventType string          `db:"event_type"`
	ZipCode   string          `db:"zip_code"`
	TypeCount sql.NullFloat64 `db:"type_count"`
}

type boundaryRow struct {
	PostalCode   string          `db:"postal_code"`
	TotalPermits sql.NullFloat64 `db:"total_permits"`
	Geometry     sql.NullString  `db:"geometry_json"`
}

// LoadPermits возвращает недельные записи в порядке вставки
func (r *datasetRepository) LoadPermits(ctx context.Context) ([]domain.PermitRecord, error) {
	query := `
		SELECT
			COALESCE(zip_codes, '') AS zip_codes,
			COALESCE(event_type, '') AS event_type,
			year, week, permit_count, latitude, longitude
		FROM weekly_permits
		ORDER BY id
	`

	var rows []permitRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.Error("Failed to load weekly permits", zap.Error(err))
		return nil, fmt.Errorf("select weekly_permits: %w", err)
	}

	dropped := 0
	records := make([]domain.PermitRecord, 0, len(rows))
	for _, row := range rows {
		zips := domain.SplitZipCodes(row.ZipCodes)
		if len(zips) == 0 {
			dropped++
			continue
		}

		count := nullCount(row.PermitCount)
		lat, lon := coordinates(row.Latitude, row.Longitude)
		for _, zip := range zips {
			records = append(records, domain.PermitRecord{
				ZipCode:     zip,
				EventType:   strings.TrimSpace(row.EventType),
				Year:        row.Year,
				Week:        row.Week,
				PermitCount: count,
				Latitude:    lat,
				Longitude:   lon,
			})
		}
	}

	if dropped > 0 {
		r.logger.Warn("Permit rows without ZIP code dropped", zap.Int("dropped", dropped))
	}
	r.logger.Debug("Weekly permits loaded",
		zap.Int("rows", len(rows)),
		zap.Int("records", len(records)))

	return records, nil
}

// LoadPermitTypes возвращает строки permit_types в порядке вставки
func (r *datasetRepository) LoadPermitTypes(ctx context.Context) ([]domain.TypeTotal, error) {
	query := `
		SELECT event_type, COALESCE(zip_code, '') AS zip_code, type_count
		FROM permit_types
		WHERE TRIM(event_type) <> ''
		ORDER BY id
	`

	var rows []typeRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.Error("Failed to load permit types", zap.Error(err))
		return nil, fmt.Errorf("select permit_types: %w", err)
	}

	totals := make([]domain.TypeTotal, 0, len(rows))
	for _, row := range rows {
		totals = append(totals, domain.TypeTotal{
			EventType: strings.TrimSpace(row.EventType),
			ZipCode:   strings.TrimSpace(row.ZipCode),
			TypeCount: nullCount(row.TypeCount),
		})
	}
	return totals, nil
}

// LoadBoundaries возвращает полигоны ZIP; геометрия отдаётся PostGIS как GeoJSON
func (r *datasetRepository) LoadBoundaries(ctx context.Context) ([]domain.ZipBoundary, error) {
	query := `
		SELECT
			TRIM(postal_code) AS postal_code,
			total_permits,
			ST_AsGeoJSON(geometry) AS geometry_json
		FROM zip_boundaries
		WHERE TRIM(COALESCE(postal_code, '')) <> ''
		ORDER BY id
	`

	var rows []boundaryRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.Error("Failed to load zip boundaries", zap.Error(err))
		return nil, fmt.Errorf("select zip_boundaries: %w", err)
	}

	seen := make(map[string]struct{}, len(rows))
	boundaries := make([]domain.ZipBoundary, 0, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.PostalCode]; dup {
			continue
		}
		seen[row.PostalCode] = struct{}{}

		b := domain.ZipBoundary{
			PostalCode:   row.PostalCode,
			TotalPermits: nullCount(row.TotalPermits),
			Properties: map[string]interface{}{
				"postalCode": row.PostalCode,
			},
		}
		if row.Geometry.Valid {
			g, err := geojson.UnmarshalGeometry([]byte(row.Geometry.String))
			if err != nil {
				r.logger.Warn("Invalid boundary geometry",
					zap.String("postal_code", row.PostalCode),
					zap.Error(err))
			} else {
				b.Geometry = g.Geometry()
			}
		}
		boundaries = append(boundaries, b)
	}

	r.logger.Debug("Zip boundaries loaded", zap.Int("boundaries", len(boundaries)))
	return boundaries, nil
}

func nullCount(v sql.NullFloat64) int {
	if !v.Valid {
		return 0
	}
	return domain.NormalizeCount(&v.Float64)
}

func coordinates(lat, lon sql.NullFloat64) (*float64, *float64) {
	if !lat.Valid || !lon.Valid || !utils.ValidateCoordinates(lat.Float64, lon.Float64) {
		return nil, nil
	}
	la, lo := lat.Float64, lon.Float64
	return &la, &lo
}
