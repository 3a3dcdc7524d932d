package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
)

// BearerToken guards machine-to-machine endpoints with a shared secret. With no
// secret configured every request is refused.
func BearerToken(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, found := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if secret == "" || !found || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		return c.Next()
	}
}
