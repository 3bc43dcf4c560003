package main

// @title Permit Map API
// @version 1.0.0
// @description Сервис хороплетной карты разрешений на съёмки по ZIP-кодам.
// @description
// @description Основные возможности:
// @description - Фильтр по неделе (или за всё время) и типам разрешений
// @description - Агрегаты по ZIP и раскрашенный GeoJSON с легендой
// @description - Статистика датасета и перезагрузка данных

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/permit-map/docs/swagger"
	"github.com/permit-map/internal/aggregator"
	"github.com/permit-map/internal/classifier"
	"github.com/permit-map/internal/config"
	httpDelivery "github.com/permit-map/internal/delivery/http"
	"github.com/permit-map/internal/delivery/http/handler"
	"github.com/permit-map/internal/domain/repository"
	"github.com/permit-map/internal/infrastructure/dataset"
	"github.com/permit-map/internal/pkg/logger"
	"github.com/permit-map/internal/pkg/metrics"
	"github.com/permit-map/internal/repository/cache"
	"github.com/permit-map/internal/repository/postgres"
	redisRepo "github.com/permit-map/internal/repository/redis"
	"github.com/permit-map/internal/repository/source"
	"github.com/permit-map/internal/usecase"
	"github.com/permit-map/internal/worker"
	"github.com/permit-map/internal/worker/reload"
	"go.uber.org/zap"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Permit Map Service")
	log.Info("Configuration loaded",
		zap.String("env", cfg.Server.Env),
		zap.String("server_addr", cfg.GetServerAddr()),
		zap.String("data_source", cfg.Data.Source),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 3. Dataset source
	var (
		datasetRepo repository.DatasetRepository
		db          *postgres.DB
	)
	switch cfg.Data.Source {
	case config.DataSourceHTTP:
		datasetRepo = dataset.NewClient(&cfg.Data, log)
	case config.DataSourcePostgres:
		db, err = postgres.New(ctx, &cfg.Database, log)
		if err != nil {
			log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		datasetRepo = postgres.NewDatasetRepository(db)
	default:
		datasetRepo = source.NewFileRepository(&cfg.Data, log)
	}

	// 4. Connect to Redis (кеш и/или воркер перезагрузки)
	var (
		redisClient *cache.Redis
		cacheRepo   repository.CacheRepository
	)
	if cfg.NeedsRedis() {
		redisClient, err = cache.NewRedis(ctx, &cfg.Redis, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		if cfg.Cache.Enabled {
			cacheRepo = cache.NewCacheRepository(redisClient)
		}
		log.Info("Redis connected")
	}

	// 5. Core components
	m := metrics.New()
	agg := aggregator.New(log)
	cls := classifier.New(classifier.DefaultPalette, log)

	// 6. Initialize Use Cases
	datasetUC := usecase.NewDatasetUseCase(datasetRepo, agg, cls, cacheRepo, m, log)
	mapUC := usecase.NewMapUseCase(agg, cls, datasetUC, cacheRepo, cfg.Map, cfg.Cache.MapCacheTTL, m, log)
	statsUC := usecase.NewStatsUseCase(agg, cls, datasetUC, cacheRepo, cfg.Cache.StatsTTL, m, log)

	log.Info("Use cases initialized")

	// 7. Initial load; сервис стартует и с частично загруженными данными
	loadCtx, loadCancel := context.WithTimeout(context.Background(), cfg.Data.RequestTimeout+10*time.Second)
	if _, err := datasetUC.Load(loadCtx); err != nil {
		log.Warn("Initial dataset load incomplete", zap.Error(err))
	}
	loadCancel()

	// 8. Reload worker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var workerManager *worker.WorkerManager
	if cfg.Worker.Enabled {
		streamRepo := redisRepo.NewStreamRepository(redisClient.Client(), log)
		workerManager = worker.NewWorkerManager(worker.DefaultShutdownTimeout, log)
		workerManager.Register(reload.NewDatasetReloadWorker(
			streamRepo,
			datasetUC,
			cfg.Worker.ConsumerGroup,
			cfg.Worker.MaxRetries,
			cfg.Worker.StreamReadTimeout,
			m,
			log,
		))
		if err := workerManager.Start(workerCtx); err != nil {
			log.Fatal("Failed to start workers", zap.Error(err))
		}
	}

	// 9. Initialize HTTP Handlers and Server
	server := httpDelivery.NewServer(
		cfg,
		log,
		m,
		handler.NewDatasetHandler(datasetUC, log),
		handler.NewMapHandler(mapUC, log),
		handler.NewStatsHandler(statsUC, log),
	)

	// 10. Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started successfully",
		zap.String("address", cfg.GetServerAddr()),
		zap.String("env", cfg.Server.Env),
		zap.Bool("ready", datasetUC.Ready()),
	)

	// 11. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	if workerManager != nil {
		if err := workerManager.Stop(); err != nil {
			log.Error("Workers shutdown error", zap.Error(err))
		}
	}
	workerCancel()

	if db != nil {
		if err := db.Close(); err != nil {
			log.Error("Failed to close PostgreSQL", zap.Error(err))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis", zap.Error(err))
		}
	}

	log.Info("Server stopped successfully")
}
