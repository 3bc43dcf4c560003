package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/permit-map/internal/pkg/errors"
	"github.com/permit-map/internal/pkg/utils"
	"github.com/permit-map/internal/usecase"
	"github.com/permit-map/internal/usecase/dto"
)

// GeoJSONContentType - тип ответа /map
const GeoJSONContentType = "application/geo+json"

// MapHandler обрабатывает запросы фильтра, агрегатов и карты
type MapHandler struct {
	mapUC  *usecase.MapUseCase
	logger *zap.Logger
}

// NewMapHandler создает новый экземпляр MapHandler
func NewMapHandler(mapUC *usecase.MapUseCase, logger *zap.Logger) *MapHandler {
	return &MapHandler{
		mapUC:  mapUC,
		logger: logger,
	}
}

// GetPermitTypes godoc
// @Summary List permit types
// @Description Канонический список типов разрешений из total_by_type
// @Tags Filter
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=dto.PermitTypesResponse}
// @Router /api/v1/permit-types [get]
func (h *MapHandler) GetPermitTypes(c *fiber.Ctx) error {
	resp := h.mapUC.PermitTypes()
	return utils.SendSuccess(c, resp, &utils.Meta{Total: resp.Total})
}

// GetWeeks godoc
// @Summary List slider weeks
// @Description Позиция 0 - "All Time", далее недели по возрастанию с подписями
// @Tags Filter
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=dto.WeeksResponse}
// @Router /api/v1/weeks [get]
func (h *MapHandler) GetWeeks(c *fiber.Ctx) error {
	resp := h.mapUC.Weeks()
	return utils.SendSuccess(c, resp, &utils.Meta{Total: resp.Total})
}

// GetFilter godoc
// @Summary Current filter
// @Tags Filter
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=dto.FilterResponse}
// @Router /api/v1/filter [get]
func (h *MapHandler) GetFilter(c *fiber.Ctx) error {
	return utils.SendSuccess(c, h.mapUC.CurrentFilter(), nil)
}

// SetFilter godoc
// @Summary Replace filter
// @Description Устанавливает окно (0 - за всё время) и выбранные типы
// @Tags Filter
// @Accept json
// @Produce json
// @Param request body dto.FilterRequest true "Новый фильтр"
// @Success 200 {object} utils.SuccessResponse{data=dto.FilterResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/filter [put]
func (h *MapHandler) SetFilter(c *fiber.Ctx) error {
	var req dto.FilterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, errors.ErrInvalidRequest.WithMessage("Invalid request body"))
	}

	resp, err := h.mapUC.SetFilter(req)
	if err != nil {
		return utils.SendError(c, err)
	}

	h.logger.Debug("Filter updated",
		zap.Int("window", resp.Window),
		zap.Int("types", len(resp.Types)))

	return utils.SendSuccess(c, resp, nil)
}

// GetAggregate godoc
// @Summary Aggregated counts per ZIP
// @Description Агрегат по текущему фильтру либо по ?window= и ?types=
// @Tags Map
// @Produce json
// @Param window query int false "Окно: 0 - за всё время, i - i-я неделя"
// @Param types query []string false "Типы разрешений" collectionFormat(multi)
// @Success 200 {object} utils.SuccessResponse{data=dto.AggregateResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/aggregate [get]
func (h *MapHandler) GetAggregate(c *fiber.Ctx) error {
	q, err := parseViewQuery(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	resp, err := h.mapUC.AggregateView(c.Context(), q)
	if err != nil {
		return utils.SendError(c, err)
	}

	return utils.SendSuccess(c, resp, &utils.Meta{
		Total:  resp.Total,
		Window: &resp.Filter.Window,
		Mode:   resp.Filter.Mode,
	})
}

// GetMap godoc
// @Summary Styled ZIP choropleth
// @Description GeoJSON FeatureCollection: одна фича на границу ZIP со стилем и всплывающей подписью
// @Tags Map
// @Produce json
// @Param window query int false "Окно: 0 - за всё время, i - i-я неделя"
// @Param types query []string false "Типы разрешений" collectionFormat(multi)
// @Success 200 {object} map[string]interface{} "GeoJSON FeatureCollection"
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/map [get]
func (h *MapHandler) GetMap(c *fiber.Ctx) error {
	q, err := parseViewQuery(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	rendered, err := h.mapUC.RenderMap(c.Context(), q)
	if err != nil {
		return utils.SendError(c, err)
	}

	cache := "MISS"
	if rendered.Cached {
		cache = "HIT"
	}
	c.Set("X-Cache", cache)
	c.Set("X-Classification", rendered.Policy)
	c.Set("X-Features", strconv.Itoa(rendered.Features))
	c.Set(fiber.HeaderContentType, GeoJSONContentType)
	return c.Send(rendered.GeoJSON)
}

// GetLegend godoc
// @Summary Legend for a window
// @Tags Map
// @Produce json
// @Param window query int false "Окно; по умолчанию окно текущего фильтра"
// @Success 200 {object} utils.SuccessResponse{data=dto.LegendResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/legend [get]
func (h *MapHandler) GetLegend(c *fiber.Ctx) error {
	window, err := parseWindow(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	resp := h.mapUC.Legend(window)
	return utils.SendSuccess(c, resp, &utils.Meta{
		Total:  len(resp.Items),
		Window: &resp.Window,
		Mode:   resp.Mode,
	})
}

// GetMapConfig godoc
// @Summary Map view settings
// @Tags Map
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=dto.MapConfigResponse}
// @Router /api/v1/map/config [get]
func (h *MapHandler) GetMapConfig(c *fiber.Ctx) error {
	return utils.SendSuccess(c, h.mapUC.MapConfig(), nil)
}
