package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/solvearc/solvearc-api/internal/service"
	"github.com/solvearc/solvearc-api/internal/utils"
)

// SetAnalyticsHandler serves reporting statistics for problem sets.
type SetAnalyticsHandler struct {
	service service.SetAnalyticsService
	logger  zerolog.Logger
}

// NewSetAnalyticsHandler constructs the handler.
func NewSetAnalyticsHandler(service service.SetAnalyticsService, logger zerolog.Logger) *SetAnalyticsHandler {
	return &SetAnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "set_analytics_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *SetAnalyticsHandler) Register(router fiber.Router) {
	router.Get("/:id/analytics", h.get)
}

func (h *SetAnalyticsHandler) get(c *fiber.Ctx) error {
	problemSetID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.service.GetSummary(c.Context(), problemSetID)
	if err != nil {
		if errors.Is(err, service.ErrProblemSetNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		h.logger.Error().Err(err).Msg("analytics aggregation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "analytics retrieved", summary)
}
