package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/apperr"
	"taskmanager/internal/models"
	"taskmanager/internal/policy"
	"taskmanager/pkg/metrics"
)

type fakeAuth map[string]policy.Requester

func (f fakeAuth) Authenticate(_ context.Context, token string) (policy.Requester, error) {
	req, ok := f[token]
	if !ok {
		return policy.Requester{}, apperr.Unauthorized("Invalid token")
	}
	return req, nil
}

func newApp() *fiber.App {
	auth := fakeAuth{"good": {ID: 7, Role: models.RoleAdmin}}
	app := fiber.New(fiber.Config{ErrorHandler: FiberErrorHandler})
	app.Use(ErrorHandler(metrics.New()))
	whoami := func(c *fiber.Ctx) error {
		req, ok := RequesterFrom(c)
		if !ok {
			return Fail(c, apperr.Internal("no requester", nil))
		}
		return c.JSON(fiber.Map{"id": req.ID, "role": req.Role})
	}
	app.Get("/me", UseToken(auth), whoami)
	app.Get("/ws", UseQueryToken(auth), whoami)
	app.Get("/panic", func(c *fiber.Ctx) error { panic("boom") })
	return app
}

func decode(t *testing.T, app *fiber.App, method, url, authHeader string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, url, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestUseToken(t *testing.T) {
	app := newApp()

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"missing", "", 401, "No token provided"},
		{"wrong scheme", "Basic good", 401, "Invalid token format"},
		{"unknown token", "Bearer bad", 401, "Invalid token"},
		{"valid", "Bearer good", 200, ""},
		{"lowercase scheme", "bearer good", 200, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := decode(t, app, "GET", "/me", tt.header)
			assert.Equal(t, tt.status, status)
			if tt.message != "" {
				assert.Equal(t, tt.message, body["message"])
				assert.Equal(t, false, body["success"])
			} else {
				assert.EqualValues(t, 7, body["id"])
				assert.Equal(t, "admin", body["role"])
			}
		})
	}
}

func TestUseQueryToken(t *testing.T) {
	app := newApp()

	status, _ := decode(t, app, "GET", "/ws", "")
	assert.Equal(t, 401, status)

	status, body := decode(t, app, "GET", "/ws?token=good", "")
	assert.Equal(t, 200, status)
	assert.EqualValues(t, 7, body["id"])
}

func TestErrorHandlerRecoversPanic(t *testing.T) {
	status, body := decode(t, newApp(), "GET", "/panic", "")
	assert.Equal(t, 500, status)
	assert.Equal(t, "Internal server error", body["message"])
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	status, body := decode(t, newApp(), "GET", "/nope", "")
	assert.Equal(t, 404, status)
	assert.EqualValues(t, 404, body["status"])
}

func TestOversizedBodyIsValidationError(t *testing.T) {
	app := newApp()
	app.Post("/big", func(c *fiber.Ctx) error { return fiber.ErrRequestEntityTooLarge })

	status, body := decode(t, app, "POST", "/big", "")
	assert.Equal(t, 400, status)
	assert.Equal(t, MsgBodyTooLarge, body["message"])
	assert.Equal(t, false, body["success"])
}
