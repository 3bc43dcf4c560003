package reload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/domain/repository"
	"github.com/permit-map/internal/pkg/metrics"
	"github.com/permit-map/internal/worker"
)

const (
	maxBatchSize = 10
	retryDelay   = 100 * time.Millisecond
	errorPause   = time.Second
)

// Reloader перезагружает датасеты
type Reloader interface {
	Reload(ctx context.Context) (*domain.LoadReport, error)
}

// DatasetReloadWorker слушает stream:permits:reload и перезагружает датасеты.
// События одного батча схлопываются в одну перезагрузку; результат публикуется
// в stream:permits:reloaded для каждого события.
type DatasetReloadWorker struct {
	*worker.BaseWorker
	streamRepo  repository.StreamRepository
	reloader    Reloader
	metrics     *metrics.Metrics
	maxRetries  int
	idleTimeout time.Duration
}

// NewDatasetReloadWorker создает новый DatasetReloadWorker; m может быть nil
func NewDatasetReloadWorker(
	streamRepo repository.StreamRepository,
	reloader Reloader,
	consumerGroup string,
	maxRetries int,
	idleTimeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DatasetReloadWorker {
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &DatasetReloadWorker{
		BaseWorker:  worker.NewBaseWorker("dataset-reload", consumerGroup, logger),
		streamRepo:  streamRepo,
		reloader:    reloader,
		metrics:     m,
		maxRetries:  maxRetries,
		idleTimeout: idleTimeout,
	}
}

// Start запускает воркер
func (w *DatasetReloadWorker) Start(ctx context.Context) error {
	logger := w.Logger()
	logger.Info("Starting DatasetReloadWorker",
		zap.String("consumer_group", w.ConsumerGroup()),
		zap.String("consumer_name", w.ConsumerName()))

	if err := w.streamRepo.CreateConsumerGroup(ctx, domain.StreamDatasetReload, w.ConsumerGroup()); err != nil {
		logger.Error("Failed to create consumer group", zap.Error(err))
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	for {
		select {
		case <-w.StopChan():
			logger.Info("Worker stopped")
			return nil

		case <-ctx.Done():
			logger.Info("Context cancelled")
			return ctx.Err()

		default:
			processed, err := w.processBatch(ctx)
			if err != nil {
				logger.Error("Failed to process batch", zap.Error(err))
				w.Pause(ctx, errorPause)
				continue
			}

			if processed == 0 {
				w.Pause(ctx, w.idleTimeout)
			}
		}
	}
}

// processBatch читает события и выполняет одну перезагрузку на батч.
// Возвращает количество прочитанных сообщений.
func (w *DatasetReloadWorker) processBatch(ctx context.Context) (int, error) {
	logger := w.Logger()

	messages, err := w.streamRepo.ConsumeBatch(
		ctx,
		domain.StreamDatasetReload,
		w.ConsumerGroup(),
		w.ConsumerName(),
		maxBatchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to consume batch: %w", err)
	}

	if len(messages) == 0 {
		return 0, nil
	}

	events := make([]*domain.DatasetReloadEvent, 0, len(messages))
	messageIDs := make([]string, 0, len(messages))

	for _, msg := range messages {
		event, err := parseMessage(msg)
		if err != nil {
			logger.Warn("Invalid reload event, skipping",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			// ACK битое сообщение чтобы не застревало
			_ = w.streamRepo.AckMessage(ctx, domain.StreamDatasetReload, w.ConsumerGroup(), msg.ID)
			w.metrics.ReloadEvent(false)
			continue
		}

		events = append(events, event)
		messageIDs = append(messageIDs, msg.ID)
	}

	if len(events) == 0 {
		return len(messages), nil
	}

	logger.Info("Reloading datasets",
		zap.Int("events", len(events)),
		zap.String("reason", events[0].Reason))

	report, reloadErr := w.reload(ctx)

	completedAt := time.Now().UTC()
	for _, event := range events {
		done := &domain.DatasetReloadedEvent{
			EventID:     event.EventID,
			CompletedAt: completedAt,
		}
		if report != nil {
			done.Report = *report
		}
		if reloadErr != nil {
			done.Error = reloadErr.Error()
		}

		if err := w.streamRepo.PublishToStream(ctx, domain.StreamDatasetReloaded, done); err != nil {
			logger.Error("Failed to publish reloaded event",
				zap.String("event_id", event.EventID.String()),
				zap.Error(err))
		}
		w.metrics.ReloadEvent(reloadErr == nil)
	}

	for _, id := range messageIDs {
		if err := w.streamRepo.AckMessage(ctx, domain.StreamDatasetReload, w.ConsumerGroup(), id); err != nil {
			logger.Error("Failed to ack message", zap.String("message_id", id), zap.Error(err))
		}
	}

	if reloadErr != nil {
		logger.Error("Dataset reload failed", zap.Error(reloadErr))
	} else {
		logger.Info("Dataset reload completed",
			zap.String("version", report.Version),
			zap.Int("records", report.Records))
	}

	return len(messages), nil
}

// reload повторяет перезагрузку до maxRetries раз
func (w *DatasetReloadWorker) reload(ctx context.Context) (*domain.LoadReport, error) {
	var (
		report *domain.LoadReport
		err    error
	)
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		report, err = w.reloader.Reload(ctx)
		if err == nil {
			return report, nil
		}

		w.Logger().Warn("Reload attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", w.maxRetries),
			zap.Error(err))

		if attempt < w.maxRetries {
			select {
			case <-time.After(time.Duration(attempt) * retryDelay):
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}
	}
	return report, err
}

// parseMessage разбирает поле data сообщения в DatasetReloadEvent
func parseMessage(msg domain.StreamMessage) (*domain.DatasetReloadEvent, error) {
	if msg.Data == "" {
		return nil, fmt.Errorf("missing 'data' field")
	}

	var event domain.DatasetReloadEvent
	if err := json.Unmarshal([]byte(msg.Data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if !event.Validate() {
		return nil, fmt.Errorf("event_id is required")
	}

	return &event, nil
}
