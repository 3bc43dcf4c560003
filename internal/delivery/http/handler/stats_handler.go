package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/permit-map/internal/pkg/utils"
	"github.com/permit-map/internal/usecase"
	"go.uber.org/zap"
)

// StatsHandler обрабатывает запросы для статистики
type StatsHandler struct {
	statsUC *usecase.StatsUseCase
	logger  *zap.Logger
}

// NewStatsHandler создает новый экземпляр StatsHandler
func NewStatsHandler(statsUC *usecase.StatsUseCase, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		statsUC: statsUC,
		logger:  logger,
	}
}

// GetStatistics godoc
// @Summary Get dataset statistics
// @Description Распределение разрешений по типам, неделям и ZIP, квантильные пороги и заполненность бакетов
// @Tags Statistics
// @Accept json
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=domain.Statistics}
// @Failure 503 {object} utils.ErrorResponse
// @Router /api/v1/stats [get]
func (h *StatsHandler) GetStatistics(c *fiber.Ctx) error {
	ctx := c.Context()

	h.logger.Debug("Handling get statistics request")

	stats, err := h.statsUC.GetStatistics(ctx)
	if err != nil {
		h.logger.Warn("Failed to get statistics", zap.Error(err))
		return utils.SendError(c, err)
	}

	return utils.SendSuccess(c, stats, nil)
}

// RefreshStatistics godoc
// @Summary Recompute dataset statistics
// @Tags Statistics
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=domain.Statistics}
// @Failure 503 {object} utils.ErrorResponse
// @Router /api/v1/stats/refresh [post]
func (h *StatsHandler) RefreshStatistics(c *fiber.Ctx) error {
	stats, err := h.statsUC.RefreshStatistics(c.Context())
	if err != nil {
		h.logger.Warn("Failed to refresh statistics", zap.Error(err))
		return utils.SendError(c, err)
	}

	return utils.SendSuccess(c, stats, nil)
}
