package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"taskmanager/internal/apperr"
	"taskmanager/internal/policy"
)

// RequesterKey is the Locals key holding the authenticated policy.Requester.
const RequesterKey = "requester"

// Authenticator resolves a raw bearer token to the caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (policy.Requester, error)
}

// UseToken requires "Authorization: Bearer <token>" and stores the resolved
// requester in Locals.
func UseToken(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return Fail(c, apperr.Unauthorized("No token provided"))
		}
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return Fail(c, apperr.Unauthorized("Invalid token format"))
		}
		return authenticate(c, a, parts[1])
	}
}

// UseQueryToken reads the token from ?token=, for clients such as browsers
// opening a websocket that cannot set headers.
func UseQueryToken(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return Fail(c, apperr.Unauthorized("No token provided"))
		}
		return authenticate(c, a, token)
	}
}

func authenticate(c *fiber.Ctx, a Authenticator, token string) error {
	req, err := a.Authenticate(c.UserContext(), token)
	if err != nil {
		return Fail(c, err)
	}
	c.Locals(RequesterKey, req)
	return c.Next()
}

// RequesterFrom returns the caller stored by UseToken.
func RequesterFrom(c *fiber.Ctx) (policy.Requester, bool) {
	req, ok := c.Locals(RequesterKey).(policy.Requester)
	return req, ok
}
