package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/lowtherloudspeakers/listening-circle/internal/attribution"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/database"
	"github.com/lowtherloudspeakers/listening-circle/internal/handlers"
	"github.com/lowtherloudspeakers/listening-circle/internal/logging"
	"github.com/lowtherloudspeakers/listening-circle/internal/mailer"
	"github.com/lowtherloudspeakers/listening-circle/internal/metrics"
	"github.com/lowtherloudspeakers/listening-circle/internal/middleware"
	"github.com/lowtherloudspeakers/listening-circle/internal/routes"
	"github.com/lowtherloudspeakers/listening-circle/internal/services"
	"github.com/lowtherloudspeakers/listening-circle/internal/throttle"
	"github.com/lowtherloudspeakers/listening-circle/internal/version"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.WebflowFormSecret == "" {
		slog.Warn("WEBFLOW_FORM_SECRET is not set, lead ingestion will reject every request")
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(logging.NewStdoutHandler(), pgLogHandler)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	// Login throttle: Redis when configured so every instance shares counters
	var throttleStore throttle.Store = throttle.NewMemoryStore()
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := throttle.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			slog.Error("redis unavailable, using in-memory login throttle", "error", err)
		} else {
			throttleStore = throttle.NewRedisStore(client)
			defer client.Close()
		}
	}
	loginLimiter := throttle.NewLimiter(throttleStore, "login:", cfg.LoginMaxAttempts, cfg.LoginWindow)

	// Email
	var mail mailer.Mailer = mailer.LogMailer{}
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom)
	}

	// Services
	resolver := attribution.NewResolver(
		services.NewAttributionStore(database.DB),
		attribution.WithWindow(cfg.AttributionWindow),
	)
	authService := services.NewAuthService(database.DB, cfg, mail, loginLimiter)
	trackingService := services.NewTrackingService(database.DB, cfg, resolver)
	commissionService := services.NewCommissionService(database.DB)
	adminService := services.NewAdminService(database.DB, cfg, mail)
	statsService := services.NewStatsService(database.DB, cfg)

	// Handlers
	h := routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService, cfg),
		Tracking: handlers.NewTrackingHandler(trackingService, cfg),
		Admin:    handlers.NewAdminHandler(adminService, commissionService, cfg),
		Member:   handlers.NewMemberHandler(statsService),
		Health:   handlers.NewHealthHandler(database.Ping),
	}

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
			Release:          version.Commit,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := fiber.New(serverConfig(cfg))

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(metrics.Middleware())
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	})

	routes.Setup(app, cfg, middleware.DBRoleLookup(database.DB), h)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "commit", version.Commit)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

// serverConfig reads the client address from X-Forwarded-For only when the direct
// peer is a trusted proxy. Login throttling and click hashing key on c.IP().
func serverConfig(cfg *config.Config) fiber.Config {
	return fiber.Config{
		BodyLimit:               1 * 1024 * 1024,
		ErrorHandler:            customErrorHandler,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          cfg.TrustedProxies,
		EnableIPValidation:      true,
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only client errors carry their message.
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "route", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
