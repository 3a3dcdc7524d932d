package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
)

// CORS lets the Webflow site and the admin dashboard call the API from the browser.
// The dashboard authenticates with headers, never cookies.
func CORS(cfg *config.Config) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Authorization, Accept, X-Admin-Token, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders: "X-Request-ID, Retry-After",
		MaxAge:        600,
	})
}
