package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowtherloudspeakers/listening-circle/internal/config"
)

func TestCustomErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: customErrorHandler})
	app.Get("/teapot", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "short and stout") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("pq: password authentication failed") })

	cases := []struct {
		path    string
		code    int
		message string
	}{
		{"/teapot", fiber.StatusTeapot, "short and stout"},
		{"/boom", fiber.StatusInternalServerError, "Internal server error"},
		{"/missing", fiber.StatusNotFound, "Cannot GET /missing"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tc.code, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var body struct {
				Error   bool   `json:"error"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.True(t, body.Error)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}

func TestServerConfigOnlyTrustsConfiguredProxies(t *testing.T) {
	clientIPOf := func(cfg *config.Config) string {
		app := fiber.New(serverConfig(cfg))
		app.Get("/ip", func(c *fiber.Ctx) error { return c.SendString(c.IP()) })

		req := httptest.NewRequest("GET", "/ip", nil)
		req.Header.Set(fiber.HeaderXForwardedFor, "203.0.113.9, 10.0.0.1")
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	t.Run("forged header from an untrusted peer is ignored", func(t *testing.T) {
		assert.NotEqual(t, "203.0.113.9", clientIPOf(&config.Config{}))
	})

	t.Run("trusted proxy forwards the client address", func(t *testing.T) {
		assert.Equal(t, "203.0.113.9", clientIPOf(&config.Config{TrustedProxies: []string{"0.0.0.0/0"}}))
	})
}
