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

// TeacherRecoveryHandler wires the teacher grading queue and verdict endpoint.
type TeacherRecoveryHandler struct {
	recoveries service.RecoveryService
	logger     zerolog.Logger
}

// NewTeacherRecoveryHandler constructs the handler.
func NewTeacherRecoveryHandler(recoveries service.RecoveryService, logger zerolog.Logger) *TeacherRecoveryHandler {
	return &TeacherRecoveryHandler{
		recoveries: recoveries,
		logger:     logger.With().Str("component", "teacher_recovery_handler").Logger(),
	}
}

// Register attaches teacher endpoints to the router group.
func (h *TeacherRecoveryHandler) Register(router fiber.Router) {
	router.Get("/recoveries", h.queue)
	router.Post("/recoveries/:id/grade", h.grade)
}

func (h *TeacherRecoveryHandler) queue(c *fiber.Ctx) error {
	courseGroupID, err := parseQueryUint(c, "course_group_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course_group_id")
	}
	if courseGroupID == 0 {
		courseGroupID = courseGroupFromContext(c)
	}
	if courseGroupID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "course_group_id required")
	}

	items, err := h.recoveries.TeacherQueue(c.Context(), courseGroupID, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Uint("course_group_id", courseGroupID).Msg("failed to load grading queue")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load grading queue")
	}

	return utils.SendSuccess(c, "grading queue", items)
}

func (h *TeacherRecoveryHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.GradeRecoveryRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := actorFromContext(c)
	record, err := h.recoveries.Grade(c.Context(), actor, id, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecoveryNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "recovery record not found")
		case errors.Is(err, service.ErrOutsideCourseGroup):
			return utils.SendError(c, fiber.StatusForbidden, "record belongs to another course group")
		case errors.Is(err, service.ErrAlreadyFinalized):
			return utils.SendError(c, fiber.StatusConflict, "recovery record already finalized")
		case errors.Is(err, service.ErrInvalidTransition):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrDeadlinePassed):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, "recovery deadline has passed")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Uint("record_id", id).Msg("failed to grade recovery")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to grade recovery")
		}
	}

	return utils.SendSuccess(c, "recovery graded", record)
}
