package repository

import (
	"context"

	"github.com/permit-map/internal/domain"
)

// DatasetRepository - источник трёх исходных коллекций карты
type DatasetRepository interface {
	// LoadPermits загружает недельные записи разрешений
	LoadPermits(ctx context.Context) ([]domain.PermitRecord, error)

	// LoadPermitTypes загружает total_by_type (используется только для списка типов)
	LoadPermitTypes(ctx context.Context) ([]domain.TypeTotal, error)

	// LoadBoundaries загружает полигоны ZIP с total_permits
	LoadBoundaries(ctx context.Context) ([]domain.ZipBoundary, error)
}
