package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"taskmanager/internal/apperr"
	"taskmanager/internal/middleware"
)

func taskID(c *fiber.Ctx) (int, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id <= 0 {
		// a non-numeric id can never exist in the database
		return 0, apperr.NotFound("Task not found")
	}
	return id, nil
}

func (h *Handler) ListTasks(c *fiber.Ctx) error {
	req, err := caller(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	tasks, err := h.Tasks.List(c.UserContext(), req)
	if err != nil {
		return middleware.Fail(c, err)
	}
	return c.JSON(tasks)
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	req, err := caller(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	id, err := taskID(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	task, err := h.Tasks.Get(c.UserContext(), req, id)
	if err != nil {
		return middleware.Fail(c, err)
	}
	return c.JSON(task)
}

// CreateTask creates a task from a multipart form
func (h *Handler) CreateTask(c *fiber.Ctx) error {
	req, err := caller(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	form, err := parseTaskForm(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	task, err := h.Tasks.Create(c.UserContext(), req, form.createInput(), form.files)
	if err != nil {
		return middleware.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// UpdateTask changes only the fields sent; new documents are appended
func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	req, err := caller(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	id, err := taskID(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	form, err := parseTaskForm(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	task, err := h.Tasks.Update(c.UserContext(), req, id, form.fields, form.files)
	if err != nil {
		return middleware.Fail(c, err)
	}
	return c.JSON(task)
}

func (h *Handler) UpdateTaskStatus(c *fiber.Ctx) error {
	req, err := caller(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	id, err := taskID(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	var body struct {
		Status string `json:"status" form:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return middleware.Fail(c, apperr.Validation("Bad request"))
	}
	task, err := h.Tasks.UpdateStatus(c.UserContext(), req, id, body.Status)
	if err != nil {
		return middleware.Fail(c, err)
	}
	return c.JSON(task)
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	req, err := caller(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	id, err := taskID(c)
	if err != nil {
		return middleware.Fail(c, err)
	}
	if err := h.Tasks.Delete(c.UserContext(), req, id); err != nil {
		return middleware.Fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Task deleted successfully"})
}
