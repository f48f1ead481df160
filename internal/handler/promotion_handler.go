package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/tevo-edu/recovery-api/internal/service"
	"github.com/tevo-edu/recovery-api/internal/utils"
)

// PromotionHandler wires student promotion, graduation, outcome inspection
// and the graduated-student purge.
type PromotionHandler struct {
	promotions service.PromotionService
	outcomes   service.OutcomeService
	logger     zerolog.Logger
}

// NewPromotionHandler constructs the handler.
func NewPromotionHandler(promotions service.PromotionService, outcomes service.OutcomeService, logger zerolog.Logger) *PromotionHandler {
	return &PromotionHandler{
		promotions: promotions,
		outcomes:   outcomes,
		logger:     logger.With().Str("component", "promotion_handler").Logger(),
	}
}

// Register attaches promotion endpoints to the router group.
func (h *PromotionHandler) Register(router fiber.Router) {
	router.Get("/students/:id/module-outcome", h.moduleOutcome)
	router.Put("/students/:id/promote", h.promote)
	router.Put("/students/:id/graduate", h.graduate)
	router.Delete("/graduated-students", h.purgeGraduated)
}

func (h *PromotionHandler) moduleOutcome(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	moduleNumber, err := parseQueryInt(c, "module")
	if err != nil || moduleNumber <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid module")
	}

	outcome, err := h.outcomes.Resolve(c.Context(), id, moduleNumber, time.Now())
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		h.logger.Error().Err(err).Uint("student_id", id).Msg("failed to resolve module outcome")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to resolve module outcome")
	}

	return utils.SendSuccess(c, "module outcome", outcome)
}

func (h *PromotionHandler) promote(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor := actorFromContext(c)
	student, err := h.promotions.Promote(c.Context(), actor, id, time.Now())
	if err != nil {
		return h.sendPromotionError(c, id, err, "failed to promote student")
	}

	return utils.SendSuccess(c, "student promoted", student)
}

func (h *PromotionHandler) graduate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor := actorFromContext(c)
	student, err := h.promotions.Graduate(c.Context(), actor, id, time.Now())
	if err != nil {
		return h.sendPromotionError(c, id, err, "failed to graduate student")
	}

	return utils.SendSuccess(c, "student graduated", student)
}

func (h *PromotionHandler) purgeGraduated(c *fiber.Ctx) error {
	actor := actorFromContext(c)
	result, err := h.promotions.PurgeGraduated(c.Context(), actor)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to purge graduated students")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to purge graduated students")
	}

	return utils.SendSuccess(c, "graduated students purged", result)
}

func (h *PromotionHandler) sendPromotionError(c *fiber.Ctx, id uint, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrModuleUndecided):
		return utils.SendError(c, fiber.StatusConflict, "module outcome is undecided")
	case errors.Is(err, service.ErrModuleFailed):
		return utils.SendError(c, fiber.StatusConflict, "module outcome is fail")
	case errors.Is(err, service.ErrNotFinalModule):
		return utils.SendError(c, fiber.StatusConflict, "student has not reached the final module")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Uint("student_id", id).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
