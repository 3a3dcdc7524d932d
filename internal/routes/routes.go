package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/handlers"
	"github.com/lowtherloudspeakers/listening-circle/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Tracking *handlers.TrackingHandler
	Admin    *handlers.AdminHandler
	Member   *handlers.MemberHandler
	Health   *handlers.HealthHandler
}

func perIPLimit(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}

func Setup(app *fiber.App, cfg *config.Config, roles middleware.RoleLookup, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Referral links
	app.Get("/r/:code", perIPLimit(120), h.Tracking.Redirect)

	api := app.Group("/api")
	api.Use(perIPLimit(60))

	api.Get("/health", h.Health.Check)
	api.Get("/version", h.Health.Version)

	api.Post("/click", h.Tracking.Click)
	api.Post("/webflow/lead", middleware.BearerToken(cfg.WebflowFormSecret), h.Tracking.Lead)

	// Auth, stricter limit on top of the API one
	auth := api.Group("/auth")
	auth.Use(perIPLimit(10))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/check", h.Auth.Check)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/magic-link", h.Auth.MagicLink)
	auth.Post("/magic-link/verify", h.Auth.VerifyMagicLink)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/logout", middleware.JWTProtected(cfg), h.Auth.Logout)

	// Member dashboards
	memberJWT := middleware.JWTProtected(cfg)
	self := middleware.SelfOrAdmin("id", cfg, roles)
	api.Get("/users/:id/stats", memberJWT, self, h.Member.Stats)
	api.Get("/users/:id/advocates", memberJWT, self, h.Member.Advocates)

	// Admin. The admin token header works without a JWT.
	admin := api.Group("/admin", optionalJWT(cfg), middleware.AdminRequired(cfg, roles))
	admin.Get("/users", h.Admin.ListUsers)
	admin.Post("/users/:id/approve", h.Admin.Approve)
	admin.Post("/users/:id/tier", h.Admin.SetTier)
	admin.Post("/users/:id/promote", h.Admin.Promote)
	admin.Put("/users/:id/ambassador", h.Admin.SetAmbassador)
	admin.Delete("/users/:id", h.Admin.DeleteUser)
	admin.Get("/users/:id/commissions", h.Admin.Commissions)
	admin.Post("/users/:id/pay-commission", h.Admin.PayCommission)
	admin.Post("/commissions/:entryId/approve", h.Admin.ApproveCommission)
}

// optionalJWT validates a bearer token when one is sent and otherwise lets the request
// through for AdminRequired to judge.
func optionalJWT(cfg *config.Config) fiber.Handler {
	jwt := middleware.JWTProtected(cfg)
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return jwt(c)
	}
}
