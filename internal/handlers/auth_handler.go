package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/services"
	"github.com/lowtherloudspeakers/listening-circle/internal/throttle"
)

type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{authService: authService, cfg: cfg}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	user, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			return fail(c, fiber.StatusConflict, err.Error())
		}
		slog.Error("register failed", "error", err, "route", c.Route().Path)
		return internalError(c)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.RegisterResponse{
		Message: "Application received. You will hear from us once it has been reviewed.",
		User:    services.ToUserResponse(h.cfg, user),
	})
}

func (h *AuthHandler) Check(c *fiber.Ctx) error {
	var req dto.CheckRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	resp, err := h.authService.Check(c.UserContext(), req.Email)
	if err != nil {
		slog.Error("email check failed", "error", err, "route", c.Route().Path)
		return internalError(c)
	}
	return c.JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	resp, err := h.authService.Login(c.UserContext(), clientIP(c), &req)
	if err != nil {
		switch {
		case errors.Is(err, throttle.ErrTooManyAttempts):
			return fail(c, fiber.StatusTooManyRequests, err.Error())
		case errors.Is(err, services.ErrInvalidCredentials):
			return fail(c, fiber.StatusUnauthorized, err.Error())
		case errors.Is(err, services.ErrNotApproved):
			return fail(c, fiber.StatusForbidden, err.Error())
		}
		slog.Error("login failed", "error", err, "route", c.Route().Path)
		return internalError(c)
	}

	return c.JSON(resp)
}

// MagicLink always answers 202 so the response does not reveal membership.
func (h *AuthHandler) MagicLink(c *fiber.Ctx) error {
	var req dto.MagicLinkRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	if err := h.authService.RequestMagicLink(c.UserContext(), req.Email); err != nil {
		slog.Error("magic link failed", "error", err, "route", c.Route().Path, "action", "magic_link")
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.MessageResponse{
		Message: "If that address belongs to an approved member, a sign-in link is on its way.",
	})
}

func (h *AuthHandler) VerifyMagicLink(c *fiber.Ctx) error {
	var req dto.VerifyMagicLinkRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	resp, err := h.authService.VerifyMagicLink(c.UserContext(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidToken):
			return fail(c, fiber.StatusUnauthorized, err.Error())
		case errors.Is(err, services.ErrNotApproved):
			return fail(c, fiber.StatusForbidden, err.Error())
		}
		slog.Error("magic link verify failed", "error", err, "route", c.Route().Path)
		return internalError(c)
	}
	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	resp, err := h.authService.Refresh(c.UserContext(), &req)
	switch {
	case errors.Is(err, services.ErrInvalidToken):
		return fail(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrNotApproved):
		return fail(c, fiber.StatusForbidden, err.Error())
	case err != nil:
		slog.Error("token refresh failed", "error", err, "route", c.Route().Path, "action", "refresh")
		return internalError(c)
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	if err := h.authService.Logout(c.UserContext(), &req); err != nil {
		slog.Error("logout failed", "error", err, "route", c.Route().Path)
		return internalError(c)
	}

	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}
