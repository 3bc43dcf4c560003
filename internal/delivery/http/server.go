package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/permit-map/internal/config"
	"github.com/permit-map/internal/delivery/http/handler"
	"github.com/permit-map/internal/delivery/http/middleware"
	"github.com/permit-map/internal/pkg/metrics"
	fiberSwagger "github.com/swaggo/fiber-swagger"
	"go.uber.org/zap"
)

// Server - HTTP сервер на основе Fiber
type Server struct {
	app     *fiber.App
	config  *config.Config
	metrics *metrics.Metrics
	logger  *zap.Logger

	// Handlers
	datasetHandler *handler.DatasetHandler
	mapHandler     *handler.MapHandler
	statsHandler   *handler.StatsHandler
}

// NewServer - создание нового HTTP сервера; m может быть nil
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
	datasetHandler *handler.DatasetHandler,
	mapHandler *handler.MapHandler,
	statsHandler *handler.StatsHandler,
) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "Permit Map Service",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: customErrorHandler(logger),
	})

	s := &Server{
		app:            app,
		config:         cfg,
		metrics:        m,
		logger:         logger,
		datasetHandler: datasetHandler,
		mapHandler:     mapHandler,
		statsHandler:   statsHandler,
	}

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

// App - доступ к fiber.App (используется в тестах)
func (s *Server) App() *fiber.App {
	return s.app
}

// setupMiddlewares - настройка middleware
func (s *Server) setupMiddlewares() {
	s.app.Use(middleware.Recovery(s.logger))
	s.app.Use(middleware.Logger(s.logger))
	s.app.Use(s.metrics.Middleware())
	s.app.Use(middleware.CORS(s.config.Server.CORSOrigins))
	s.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
}

// setupRoutes - настройка маршрутов
func (s *Server) setupRoutes() {
	// Swagger documentation route
	s.app.Get("/swagger/*", fiberSwagger.WrapHandler)

	if s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	api := s.app.Group("/api/v1")

	api.Get("/health", s.datasetHandler.Health)

	// Datasets
	api.Get("/datasets/status", s.datasetHandler.GetStatus)
	api.Post("/datasets/reload", s.datasetHandler.Reload)

	// Filter
	api.Get("/permit-types", s.mapHandler.GetPermitTypes)
	api.Get("/weeks", s.mapHandler.GetWeeks)
	api.Get("/filter", s.mapHandler.GetFilter)
	api.Put("/filter", s.mapHandler.SetFilter)

	// Map
	api.Get("/aggregate", s.mapHandler.GetAggregate)
	api.Get("/map", s.mapHandler.GetMap)
	api.Get("/map/config", s.mapHandler.GetMapConfig)
	api.Get("/legend", s.mapHandler.GetLegend)

	// Stats
	api.Get("/stats", s.statsHandler.GetStatistics)
	api.Post("/stats/refresh", s.statsHandler.RefreshStatistics)
}

// Start - запуск HTTP сервера
func (s *Server) Start() error {
	addr := s.config.GetServerAddr()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))
	return s.app.Listen(addr)
}

// Shutdown - graceful shutdown HTTP сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler - кастомный обработчик ошибок
func customErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		errCode := "INTERNAL_SERVER_ERROR"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			if code == fiber.StatusNotFound {
				errCode = "NOT_FOUND"
			} else if code < fiber.StatusInternalServerError {
				errCode = "INVALID_REQUEST"
			}
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("HTTP Error",
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    errCode,
				"message": err.Error(),
			},
		})
	}
}
