package worker

import (
	"context"
)

// Worker - фоновый обработчик стрима
type Worker interface {
	// Start блокируется до Stop или отмены контекста
	Start(ctx context.Context) error

	// Stop останавливает воркер; повторный вызов безопасен
	Stop() error

	Name() string
}
