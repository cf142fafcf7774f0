package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskmanager/internal/apperr"
	"taskmanager/internal/middleware"
	"taskmanager/internal/policy"
	"taskmanager/internal/service"
	"taskmanager/pkg/logger"
)

// Handler binds the services to HTTP routes.
type Handler struct {
	Auth  *service.AuthService
	Users *service.UserService
	Tasks *service.TaskService
}

func New(auth *service.AuthService, users *service.UserService, tasks *service.TaskService) *Handler {
	return &Handler{Auth: auth, Users: users, Tasks: tasks}
}

// caller returns the user authenticated by middleware.UseToken
func caller(c *fiber.Ctx) (policy.Requester, error) {
	req, ok := middleware.RequesterFrom(c)
	if !ok {
		logger.ErrorLogger.Error("Route served without authentication", zap.String("path", c.Path()))
		return req, apperr.Unauthorized("No token provided")
	}
	return req, nil
}

func bindCredentials(c *fiber.Ctx) (service.Credentials, error) {
	var req service.Credentials
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in auth", zap.Error(err))
		return req, apperr.Validation("Bad request")
	}
	return req, nil
}

func (h *Handler) Register(c *fiber.Ctx) error {
	req, err := bindCredentials(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	res, err := h.Auth.Register(c.UserContext(), req)
	if err != nil {
		return middleware.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// Login with JSON Web Token (JWT)
func (h *Handler) Login(c *fiber.Ctx) error {
	req, err := bindCredentials(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	res, err := h.Auth.Login(c.UserContext(), req)
	if err != nil {
		return middleware.Fail(c, err)
	}
	return c.JSON(res)
}
