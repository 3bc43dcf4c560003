package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout - ожидание завершения воркеров по умолчанию
const DefaultShutdownTimeout = 30 * time.Second

// WorkerManager запускает воркеры и останавливает их с таймаутом
type WorkerManager struct {
	workers         []Worker
	shutdownTimeout time.Duration
	logger          *zap.Logger
	wg              sync.WaitGroup
	mu              sync.Mutex
	failures        []error
}

// NewWorkerManager создает новый WorkerManager; shutdownTimeout <= 0 - DefaultShutdownTimeout
func NewWorkerManager(shutdownTimeout time.Duration, logger *zap.Logger) *WorkerManager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &WorkerManager{
		workers:         make([]Worker, 0),
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// Register регистрирует воркер
func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, w)
	m.logger.Info("Worker registered", zap.String("name", w.Name()))
}

// Start запускает каждый воркер в своей горутине и сразу возвращается
func (m *WorkerManager) Start(ctx context.Context) error {
	workers := m.snapshot()
	if len(workers) == 0 {
		return fmt.Errorf("no workers registered")
	}

	m.logger.Info("Starting workers", zap.Int("count", len(workers)))

	for _, worker := range workers {
		m.wg.Add(1)
		go func(w Worker) {
			defer m.wg.Done()

			err := w.Start(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				m.logger.Info("Worker finished", zap.String("name", w.Name()))
				return
			}

			m.logger.Error("Worker failed",
				zap.String("name", w.Name()),
				zap.Error(err))
			m.mu.Lock()
			m.failures = append(m.failures, fmt.Errorf("%s: %w", w.Name(), err))
			m.mu.Unlock()
		}(worker)
	}

	return nil
}

// Stop сигналит всем воркерам и ждёт их завершения не дольше shutdownTimeout
func (m *WorkerManager) Stop() error {
	workers := m.snapshot()

	m.logger.Info("Stopping workers", zap.Int("count", len(workers)))

	for _, worker := range workers {
		if err := worker.Stop(); err != nil {
			m.logger.Error("Failed to stop worker",
				zap.String("name", worker.Name()),
				zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(m.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		m.logger.Info("All workers stopped gracefully")
	case <-timer.C:
		m.logger.Warn("Workers shutdown timed out",
			zap.Duration("timeout", m.shutdownTimeout))
		return fmt.Errorf("workers shutdown timed out after %v", m.shutdownTimeout)
	}

	return nil
}

// Failures возвращает ошибки воркеров, завершившихся аварийно
func (m *WorkerManager) Failures() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]error, len(m.failures))
	copy(out, m.failures)
	return out
}

func (m *WorkerManager) snapshot() []Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	workers := make([]Worker, len(m.workers))
	copy(workers, m.workers)
	return workers
}
