package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
)

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

// bind parses and validates a JSON body. ok is false once a 400 has been written.
func bind(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return false, fail(c, fiber.StatusBadRequest, err.Error())
	}
	return true, nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// clientIP is the socket peer, or the forwarded client when the peer is a trusted
// proxy (see the server's fiber.Config).
func clientIP(c *fiber.Ctx) string {
	return c.IP()
}

func internalError(c *fiber.Ctx) error {
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}
