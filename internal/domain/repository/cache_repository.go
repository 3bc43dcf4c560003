package repository

import (
	"context"
	"time"

	"github.com/permit-map/internal/domain"
)

// StatsCacheKey - ключ кешированной статистики датасета
const StatsCacheKey = "stats:current"

// CacheRepository определяет методы для работы с кешем
type CacheRepository interface {
	// Get получает значение из кеша по ключу
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кеше с TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет значение из кеша
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix удаляет все ключи с префиксом
	DeleteByPrefix(ctx context.Context, prefix string) error

	// GetStats получает статистику из кеша
	GetStats(ctx context.Context) (*domain.Statistics, error)

	// SetStats сохраняет статистику в кеше
	SetStats(ctx context.Context, stats *domain.Statistics, ttl time.Duration) error
}
