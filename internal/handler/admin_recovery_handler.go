package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/tevo-edu/recovery-api/internal/dto"
	"github.com/tevo-edu/recovery-api/internal/service"
	"github.com/tevo-edu/recovery-api/internal/utils"
)

// AdminRecoveryHandler wires the admin recovery panel and approval endpoints.
type AdminRecoveryHandler struct {
	recoveries service.RecoveryService
	detector   service.DetectorService
	logger     zerolog.Logger
}

// NewAdminRecoveryHandler constructs the handler.
func NewAdminRecoveryHandler(recoveries service.RecoveryService, detector service.DetectorService, logger zerolog.Logger) *AdminRecoveryHandler {
	return &AdminRecoveryHandler{
		recoveries: recoveries,
		detector:   detector,
		logger:     logger.With().Str("component", "admin_recovery_handler").Logger(),
	}
}

// Register attaches admin recovery endpoints to the router group.
func (h *AdminRecoveryHandler) Register(router fiber.Router) {
	router.Get("/recovery-panel", h.panel)
	router.Post("/recoveries/:id/approve", h.approve)
	router.Post("/detector/run", h.runDetector)
	router.Post("/recoveries/expire", h.expire)
}

func (h *AdminRecoveryHandler) panel(c *fiber.Ctx) error {
	panel, err := h.recoveries.Panel(c.Context(), time.Now())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build recovery panel")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load recovery panel")
	}

	return utils.SendSuccess(c, "recovery panel", panel)
}

func (h *AdminRecoveryHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.ApproveRecoveryRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := actorFromContext(c)
	record, err := h.recoveries.Approve(c.Context(), actor, id, payload)
	if err != nil {
		return h.sendTransitionError(c, id, err, "failed to approve recovery")
	}

	return utils.SendSuccess(c, "recovery decision recorded", record)
}

func (h *AdminRecoveryHandler) runDetector(c *fiber.Ctx) error {
	result, err := h.detector.Run(c.Context(), time.Now())
	if err != nil {
		h.logger.Error().Err(err).Msg("detector run failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "detector run failed")
	}

	return utils.SendSuccess(c, "detector run finished", result)
}

func (h *AdminRecoveryHandler) expire(c *fiber.Ctx) error {
	result, err := h.recoveries.ExpireSweep(c.Context(), time.Now())
	if err != nil {
		h.logger.Error().Err(err).Msg("expiry sweep failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "expiry sweep failed")
	}

	return utils.SendSuccess(c, "expiry sweep finished", result)
}

func (h *AdminRecoveryHandler) sendTransitionError(c *fiber.Ctx, id uint, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrRecoveryNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "recovery record not found")
	case errors.Is(err, service.ErrAlreadyFinalized):
		return utils.SendError(c, fiber.StatusConflict, "recovery record already finalized")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrDeadlinePassed):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "recovery deadline has passed")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Uint("record_id", id).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
