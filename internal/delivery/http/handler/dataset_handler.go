package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/permit-map/internal/domain"
	"github.com/permit-map/internal/pkg/errors"
	"github.com/permit-map/internal/pkg/utils"
	"github.com/permit-map/internal/pkg/validator"
	"github.com/permit-map/internal/usecase/dto"
)

// DatasetService - загрузка и состояние датасетов
type DatasetService interface {
	Reload(ctx context.Context) (*domain.LoadReport, error)
	Status() *dto.DatasetStatusResponse
	Ready() bool
}

// DatasetHandler обрабатывает запросы состояния и перезагрузки датасетов
type DatasetHandler struct {
	datasetUC DatasetService
	logger    *zap.Logger
}

// NewDatasetHandler создает новый экземпляр DatasetHandler
func NewDatasetHandler(datasetUC DatasetService, logger *zap.Logger) *DatasetHandler {
	return &DatasetHandler{
		datasetUC: datasetUC,
		logger:    logger,
	}
}

// Health godoc
// @Summary Liveness probe
// @Description Сервис жив; ready показывает, загружены ли все три коллекции
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /api/v1/health [get]
func (h *DatasetHandler) Health(c *fiber.Ctx) error {
	return c.JSON(dto.HealthResponse{
		Status: "healthy",
		Ready:  h.datasetUC.Ready(),
	})
}

// GetStatus godoc
// @Summary Dataset readiness
// @Tags Datasets
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=dto.DatasetStatusResponse}
// @Router /api/v1/datasets/status [get]
func (h *DatasetHandler) GetStatus(c *fiber.Ctx) error {
	return utils.SendSuccess(c, h.datasetUC.Status(), nil)
}

// Reload godoc
// @Summary Reload datasets
// @Description Синхронно перечитывает три коллекции; при ошибке коллекция сохраняет прежнее состояние
// @Tags Datasets
// @Accept json
// @Produce json
// @Param request body dto.ReloadRequest false "Причина перезагрузки"
// @Success 200 {object} utils.SuccessResponse{data=domain.LoadReport}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 502 {object} utils.ErrorResponse
// @Router /api/v1/datasets/reload [post]
func (h *DatasetHandler) Reload(c *fiber.Ctx) error {
	var req dto.ReloadRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, errors.ErrInvalidRequest.WithMessage("Invalid request body"))
		}
		if err := validator.Validate(req); err != nil {
			return utils.SendError(c, errors.ErrInvalidRequest.WithDetails(validator.Describe(err)))
		}
	}

	h.logger.Info("Reloading datasets", zap.String("reason", req.Reason))

	report, err := h.datasetUC.Reload(c.Context())
	if err != nil {
		h.logger.Error("Dataset reload failed", zap.Error(err))
		details := map[string]interface{}{}
		if report != nil {
			details["report"] = report
		}
		return utils.SendError(c, errors.ErrReloadFailed.WithDetails(details))
	}

	return utils.SendSuccess(c, report, nil)
}
