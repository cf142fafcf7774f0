package v1

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"taskmanager/internal/api/v1/handlers"
	"taskmanager/internal/apperr"
	"taskmanager/internal/middleware"
	"taskmanager/internal/service"
	"taskmanager/internal/upload"
	"taskmanager/internal/websocket"
	"taskmanager/pkg/metrics"
)

// BodyLimit fits twice a full batch of documents plus the text fields, so a
// request with too many or too large files still reaches the upload checks
// and gets their 400 instead of a bare 413.
const BodyLimit = 2*upload.MaxFiles*upload.MaxFileSize + 1<<20

// Deps is everything the HTTP layer needs.
type Deps struct {
	Auth    *service.AuthService
	Users   *service.UserService
	Tasks   *service.TaskService
	Hub     *websocket.Hub
	Metrics *metrics.Metrics

	// UploadDir is served under /uploads when set (disk storage only).
	UploadDir string
	// Health reports whether backing services are reachable.
	Health func(ctx context.Context) error

	CORSOrigins  string
	RateLimitMax int
}

// NewApp builds the fiber app with middleware and all routes registered.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "taskmanager",
		BodyLimit:    BodyLimit,
		ErrorHandler: middleware.FiberErrorHandler,
	})
	app.Use(middleware.ErrorHandler(d.Metrics))
	if d.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: d.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
			AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		}))
	}
	RegisterRoutes(app, d)
	return app
}

func RegisterRoutes(app *fiber.App, d Deps) {
	h := handlers.New(d.Auth, d.Users, d.Tasks)
	api := app.Group("/api")
	if d.RateLimitMax > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        d.RateLimitMax,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"message": "Too many requests",
					"success": false,
					"status":  fiber.StatusTooManyRequests,
				})
			},
		}))
	}

	// Auth
	api.Post("/auth/register", h.Register)
	api.Post("/auth/login", h.Login)

	// User
	userRoutes := api.Group("/users", middleware.UseToken(d.Auth))
	userRoutes.Get("/", h.ListUsers)

	// Task
	taskRoutes := api.Group("/tasks", middleware.UseToken(d.Auth))
	taskRoutes.Get("/", h.ListTasks)
	taskRoutes.Post("/", h.CreateTask)
	taskRoutes.Get("/:id", h.GetTask)
	taskRoutes.Put("/:id", h.UpdateTask)
	taskRoutes.Patch("/:id/status", h.UpdateTaskStatus)
	taskRoutes.Delete("/:id", h.DeleteTask)

	// File Upload
	if d.UploadDir != "" {
		app.Static("/uploads", d.UploadDir, fiber.Static{Browse: false})
	}

	if d.Hub != nil {
		app.Get("/ws/tasks", websocket.Upgrade, middleware.UseQueryToken(d.Auth), d.Hub.Handler())
	}

	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if d.Health != nil {
			if err := d.Health(c.UserContext()); err != nil {
				return middleware.Fail(c, apperr.Internal("Service unavailable", err))
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
