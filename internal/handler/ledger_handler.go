package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/tevo-edu/recovery-api/internal/dto"
	"github.com/tevo-edu/recovery-api/internal/service"
	"github.com/tevo-edu/recovery-api/internal/utils"
)

// LedgerHandler wires grade entry for teachers.
type LedgerHandler struct {
	ledger service.LedgerService
	logger zerolog.Logger
}

// NewLedgerHandler constructs the handler.
func NewLedgerHandler(ledger service.LedgerService, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		logger: logger.With().Str("component", "ledger_handler").Logger(),
	}
}

// Register attaches the grade ledger endpoints to the router group.
func (h *LedgerHandler) Register(router fiber.Router) {
	router.Post("/grades", h.recordGrade)
}

func (h *LedgerHandler) recordGrade(c *fiber.Ctx) error {
	var payload dto.RecordGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := actorFromContext(c)
	grade, err := h.ledger.RecordGrade(c.Context(), actor, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrActivityNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		case errors.Is(err, service.ErrGradeOutOfRange):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Msg("failed to record grade")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to record grade")
		}
	}

	return utils.SendSuccess(c, "grade recorded", grade)
}
