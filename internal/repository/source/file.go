package source

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/permit-map/internal/config"
	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/domain/repository"
)

type fileRepository struct {
	permitsPath     string
	typesPath       string
	boundariesPath  string
	postalCodeField string
	logger          *zap.Logger
}

// NewFileRepository создает источник датасетов, читающий файлы с диска
func NewFileRepository(cfg *config.DataConfig, logger *zap.Logger) repository.DatasetRepository {
	return &fileRepository{
		permitsPath:     cfg.PermitsPath,
		typesPath:       cfg.TypesPath,
		boundariesPath:  cfg.BoundariesPath,
		postalCodeField: cfg.PostalCodeField,
		logger:          logger,
	}
}

func (r *fileRepository) LoadPermits(ctx context.Context) ([]domain.PermitRecord, error) {
	data, err := r.read(ctx, r.permitsPath)
	if err != nil {
		return nil, err
	}
	return Permits(data, r.permitsPath, r.logger)
}

func (r *fileRepository) LoadPermitTypes(ctx context.Context) ([]domain.TypeTotal, error) {
	data, err := r.read(ctx, r.typesPath)
	if err != nil {
		return nil, err
	}
	return TypeTotals(data, r.typesPath, r.logger)
}

func (r *fileRepository) LoadBoundaries(ctx context.Context) ([]domain.ZipBoundary, error) {
	data, err := r.read(ctx, r.boundariesPath)
	if err != nil {
		return nil, err
	}
	return Boundaries(data, r.boundariesPath, r.postalCodeField, r.logger)
}

func (r *fileRepository) read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Permits декодирует записи и логирует итоги нормализации
func Permits(data []byte, origin string, logger *zap.Logger) ([]domain.PermitRecord, error) {
	records, stats, err := DecodePermits(data)
	if err != nil {
		return nil, err
	}
	if stats.Dropped > 0 {
		logger.Warn("Permit records without ZIP code dropped",
			zap.String("source", origin),
			zap.Int("dropped", stats.Dropped))
	}
	logger.Debug("Permit records decoded",
		zap.String("source", origin),
		zap.Int("raw", stats.Raw),
		zap.Int("expanded", stats.Expanded),
		zap.Int("records", len(records)))
	return records, nil
}

// TypeTotals декодирует total_by_type
func TypeTotals(data []byte, origin string, logger *zap.Logger) ([]domain.TypeTotal, error) {
	totals, err := DecodeTypeTotals(data)
	if err != nil {
		return nil, err
	}
	logger.Debug("Permit type totals decoded",
		zap.String("source", origin),
		zap.Int("rows", len(totals)))
	return totals, nil
}

// Boundaries декодирует границы ZIP и логирует пропущенные объекты
func Boundaries(data []byte, origin, field string, logger *zap.Logger) ([]domain.ZipBoundary, error) {
	boundaries, skipped, err := DecodeBoundaries(data, field)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Warn("Boundary features skipped",
			zap.String("source", origin),
			zap.Int("skipped", skipped))
	}
	logger.Debug("Boundaries decoded",
		zap.String("source", origin),
		zap.Int("boundaries", len(boundaries)))
	return boundaries, nil
}
