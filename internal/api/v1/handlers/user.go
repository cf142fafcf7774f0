package handlers

import (
	"github.com/gofiber/fiber/v2"

	"taskmanager/internal/middleware"
)

// ListUsers returns the users the caller may pick as assignee
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	req, err := caller(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	users, err := h.Users.List(c.UserContext(), req)
	if err != nil {
		return middleware.Fail(c, err)
	}
	return c.JSON(users)
}
