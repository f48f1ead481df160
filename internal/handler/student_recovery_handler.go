package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/tevo-edu/recovery-api/internal/service"
	"github.com/tevo-edu/recovery-api/internal/utils"
)

// StudentRecoveryHandler wires the student-facing recovery and averages views.
type StudentRecoveryHandler struct {
	recoveries service.RecoveryService
	ledger     service.LedgerService
	logger     zerolog.Logger
}

// NewStudentRecoveryHandler constructs the handler.
func NewStudentRecoveryHandler(recoveries service.RecoveryService, ledger service.LedgerService, logger zerolog.Logger) *StudentRecoveryHandler {
	return &StudentRecoveryHandler{
		recoveries: recoveries,
		ledger:     ledger,
		logger:     logger.With().Str("component", "student_recovery_handler").Logger(),
	}
}

// Register attaches student endpoints to the router group.
func (h *StudentRecoveryHandler) Register(router fiber.Router) {
	router.Get("/my-recoveries", h.myRecoveries)
	router.Get("/module-averages", h.moduleAverages)
}

func (h *StudentRecoveryHandler) myRecoveries(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "student identity missing")
	}

	items, err := h.recoveries.StudentRecoveries(c.Context(), studentID, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Uint("student_id", studentID).Msg("failed to load student recoveries")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load recoveries")
	}

	return utils.SendSuccess(c, "student recoveries", items)
}

func (h *StudentRecoveryHandler) moduleAverages(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "student identity missing")
	}

	moduleNumber, err := parseQueryInt(c, "module")
	if err != nil || moduleNumber <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid module")
	}

	averages, err := h.ledger.ModuleAverages(c.Context(), studentID, moduleNumber)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		}
		h.logger.Error().Err(err).Uint("student_id", studentID).Msg("failed to compute module averages")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to compute module averages")
	}

	return utils.SendSuccess(c, "module averages", averages)
}
