package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
)

const secret = "test-secret"

func signedToken(t *testing.T, userID uuid.UUID, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID.String(),
		"email": email,
		"exp":   time.Now().Add(time.Minute).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func roles(m map[uuid.UUID]string) RoleLookup {
	return func(_ context.Context, id uuid.UUID) (string, error) {
		return m[id], nil
	}
}

func do(t *testing.T, app *fiber.App, path string, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAdminRequired(t *testing.T) {
	cfg := &config.Config{JWTSecret: secret, AdminToken: "ops-token", AdminEmails: "Owner@Example.com"}
	admin, member, owner := uuid.New(), uuid.New(), uuid.New()
	lookup := roles(map[uuid.UUID]string{admin: models.RoleAdmin, member: models.RoleMember, owner: models.RoleMember})

	app := fiber.New()
	app.Get("/token-only", AdminRequired(cfg, lookup), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/admin", JWTProtected(cfg), AdminRequired(cfg, lookup), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	bearer := func(id uuid.UUID, email string) map[string]string {
		return map[string]string{"Authorization": "Bearer " + signedToken(t, id, email)}
	}

	assert.Equal(t, fiber.StatusNoContent, do(t, app, "/token-only", map[string]string{"X-Admin-Token": "ops-token"}))
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/token-only", map[string]string{"X-Admin-Token": "wrong"}))
	assert.Equal(t, fiber.StatusNoContent, do(t, app, "/admin", bearer(admin, "admin@example.com")))
	assert.Equal(t, fiber.StatusNoContent, do(t, app, "/admin", bearer(owner, "owner@example.com")))
	assert.Equal(t, fiber.StatusForbidden, do(t, app, "/admin", bearer(member, "member@example.com")))
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/admin", nil))
}

func TestAdminRequiredLookupFailure(t *testing.T) {
	cfg := &config.Config{JWTSecret: secret}
	lookup := func(context.Context, uuid.UUID) (string, error) { return "", errors.New("db down") }

	app := fiber.New()
	app.Get("/admin", JWTProtected(cfg), AdminRequired(cfg, lookup), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	headers := map[string]string{"Authorization": "Bearer " + signedToken(t, uuid.New(), "x@example.com")}
	assert.Equal(t, fiber.StatusInternalServerError, do(t, app, "/admin", headers))
}

func TestSelfOrAdmin(t *testing.T) {
	cfg := &config.Config{JWTSecret: secret}
	admin, member, other := uuid.New(), uuid.New(), uuid.New()
	lookup := roles(map[uuid.UUID]string{admin: models.RoleAdmin, member: models.RoleMember, other: models.RoleMember})

	app := fiber.New()
	app.Get("/users/:id/stats", JWTProtected(cfg), SelfOrAdmin("id", cfg, lookup), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	auth := func(id uuid.UUID) map[string]string {
		return map[string]string{"Authorization": "Bearer " + signedToken(t, id, "")}
	}
	path := "/users/" + member.String() + "/stats"

	assert.Equal(t, fiber.StatusNoContent, do(t, app, path, auth(member)))
	assert.Equal(t, fiber.StatusNoContent, do(t, app, path, auth(admin)))
	assert.Equal(t, fiber.StatusForbidden, do(t, app, path, auth(other)))
}

func TestBearerToken(t *testing.T) {
	app := fiber.New()
	app.Get("/lead", BearerToken("form-secret"), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/closed", BearerToken(""), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	assert.Equal(t, fiber.StatusNoContent, do(t, app, "/lead", map[string]string{"Authorization": "Bearer form-secret"}))
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/lead", map[string]string{"Authorization": "form-secret"}))
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/lead", map[string]string{"Authorization": "Bearer nope"}))
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/lead", nil))
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/closed", map[string]string{"Authorization": "Bearer "}))
}
