package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/lowtherloudspeakers/listening-circle/internal/services"
)

// MemberHandler serves a member's own dashboard data. Access is checked by middleware.SelfOrAdmin.
type MemberHandler struct {
	statsService *services.StatsService
}

func NewMemberHandler(statsService *services.StatsService) *MemberHandler {
	return &MemberHandler{statsService: statsService}
}

func (h *MemberHandler) Stats(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	resp, err := h.statsService.UserStats(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return fail(c, fiber.StatusNotFound, err.Error())
		}
		slog.Error("user stats failed", "error", err, "route", c.Route().Path)
		return internalError(c)
	}
	return c.JSON(resp)
}

func (h *MemberHandler) Advocates(c *fiber.Ctx) error {
	userID, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	resp, err := h.statsService.Advocates(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return fail(c, fiber.StatusNotFound, err.Error())
		}
		slog.Error("advocates failed", "error", err, "route", c.Route().Path)
		return internalError(c)
	}
	return c.JSON(resp)
}
