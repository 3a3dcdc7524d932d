package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/identity"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
	"gorm.io/gorm"
)

// RoleLookup returns the current role of a user, or "" when the user does not exist.
type RoleLookup func(ctx context.Context, userID uuid.UUID) (string, error)

// DBRoleLookup reads roles from the users table so demotions apply before tokens expire.
func DBRoleLookup(db *gorm.DB) RoleLookup {
	return func(ctx context.Context, userID uuid.UUID) (string, error) {
		var user models.User
		err := db.WithContext(ctx).Select("role").First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return user.Role, nil
	}
}

// AdminRequired admits, in order: a matching X-Admin-Token header, a JWT whose email is
// listed in ADMIN_EMAILS, or a JWT whose user currently has the ADMIN role.
func AdminRequired(cfg *config.Config, lookup RoleLookup) fiber.Handler {
	adminEmails := parseCSV(strings.ToLower(cfg.AdminEmails))

	return func(c *fiber.Ctx) error {
		if hasAdminToken(c, cfg.AdminToken) {
			return c.Next()
		}

		userID, err := identity.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		if contains(adminEmails, strings.ToLower(identity.GetEmail(c))) {
			return c.Next()
		}

		role, err := lookup(c.UserContext(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}
		if role == models.RoleAdmin {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

// SelfOrAdmin lets a member read their own :param resource; anyone else needs admin rights.
func SelfOrAdmin(param string, cfg *config.Config, lookup RoleLookup) fiber.Handler {
	admin := AdminRequired(cfg, lookup)

	return func(c *fiber.Ctx) error {
		if hasAdminToken(c, cfg.AdminToken) {
			return c.Next()
		}
		userID, err := identity.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		if target, err := uuid.Parse(c.Params(param)); err == nil && target == userID {
			return c.Next()
		}
		return admin(c)
	}
}

func hasAdminToken(c *fiber.Ctx, expected string) bool {
	if expected == "" {
		return false
	}
	got := c.Get("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	if val == "" {
		return false
	}
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
