package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/solvearc/solvearc-api/internal/service"
	"github.com/solvearc/solvearc-api/internal/utils"
)

// EnrollmentHandler serves enrollment progress snapshots.
type EnrollmentHandler struct {
	reconciler service.ReconcilerService
	logger     zerolog.Logger
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(reconciler service.ReconcilerService, logger zerolog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		reconciler: reconciler,
		logger:     logger.With().Str("component", "enrollment_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *EnrollmentHandler) Register(router fiber.Router) {
	router.Get("/:id/enrollment", h.get)
}

func (h *EnrollmentHandler) get(c *fiber.Ctx) error {
	problemSetID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	snapshot, err := h.reconciler.Snapshot(c.Context(), problemSetID, userID)
	if err != nil {
		if errors.Is(err, service.ErrEnrollmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		h.logger.Error().Err(err).Msg("enrollment snapshot failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "enrollment retrieved", snapshot)
}
