package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/version"
)

type HealthHandler struct {
	ping func() error
}

func NewHealthHandler(ping func() error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status, dbStatus := "ok", "ok"
	code := fiber.StatusOK
	if err := h.ping(); err != nil {
		status, dbStatus = "degraded", "unhealthy: "+err.Error()
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
	})
}

func (h *HealthHandler) Version(c *fiber.Ctx) error {
	return c.JSON(dto.VersionResponse{
		Commit:    version.Commit,
		Ref:       version.Ref,
		BuildTime: version.BuildTime,
		GoVersion: version.GoVersion(),
	})
}
