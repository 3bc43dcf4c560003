package testhelpers

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/permit-map/internal/domain/repository"
	"github.com/permit-map/internal/repository/postgres"
)

// NewDBForTest оборачивает тестовое подключение в postgres.DB
func NewDBForTest(db *sqlx.DB, logger *zap.Logger) *postgres.DB {
	return postgres.NewDBForTest(db, logger)
}

// NewDatasetRepositoryForTest создает dataset repository поверх тестовой базы
func NewDatasetRepositoryForTest(db *sqlx.DB, logger *zap.Logger) repository.DatasetRepository {
	return postgres.NewDatasetRepository(NewDBForTest(db, logger))
}
