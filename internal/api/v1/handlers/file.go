package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskmanager/internal/apperr"
	"taskmanager/internal/service"
	"taskmanager/internal/upload"
	"taskmanager/pkg/logger"
)

// taskForm holds the task fields a request actually carried, plus any
// uploaded documents.
type taskForm struct {
	fields service.UpdateTaskInput
	files  []upload.File
}

// jsonTaskBody is accepted when a client sends no documents.
type jsonTaskBody struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	DueDate     *string      `json:"dueDate"`
	AssignedTo  *json.Number `json:"assignedTo"`
	Status      *string      `json:"status"`
	Priority    *string      `json:"priority"`
}

// parseTaskForm reads a multipart form (files under "documents") or a plain
// JSON body.
func parseTaskForm(c *fiber.Ctx) (taskForm, error) {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return parseMultipart(c)
	}

	var body jsonTaskBody
	if len(c.Body()) == 0 {
		return taskForm{}, nil
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		logger.ErrorLogger.Error("Bad request in task form", zap.Error(err))
		return taskForm{}, apperr.Validation("Bad request")
	}
	form := taskForm{fields: service.UpdateTaskInput{
		Title:       body.Title,
		Description: body.Description,
		DueDate:     body.DueDate,
		Status:      body.Status,
		Priority:    body.Priority,
	}}
	if body.AssignedTo != nil {
		v := body.AssignedTo.String()
		form.fields.AssignedTo = &v
	}
	return form, nil
}

func parseMultipart(c *fiber.Ctx) (taskForm, error) {
	mf, err := c.MultipartForm()
	if err != nil {
		logger.ErrorLogger.Error("Error parsing multipart form", zap.Error(err))
		return taskForm{}, apperr.Validation("Bad request")
	}
	value := func(key string) *string {
		if v, ok := mf.Value[key]; ok && len(v) > 0 {
			s := v[0]
			return &s
		}
		return nil
	}
	return taskForm{
		fields: service.UpdateTaskInput{
			Title:       value("title"),
			Description: value("description"),
			DueDate:     value("dueDate"),
			AssignedTo:  value("assignedTo"),
			Status:      value("status"),
			Priority:    value("priority"),
		},
		files: upload.FromMultipart(mf.File[upload.FieldName]),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// createInput treats absent fields as empty so validation reports them.
func (f taskForm) createInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:       deref(f.fields.Title),
		Description: deref(f.fields.Description),
		DueDate:     deref(f.fields.DueDate),
		AssignedTo:  deref(f.fields.AssignedTo),
		Status:      deref(f.fields.Status),
		Priority:    deref(f.fields.Priority),
	}
}
