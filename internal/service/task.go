package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taskmanager/internal/apperr"
	"taskmanager/internal/models"
	"taskmanager/internal/policy"
	"taskmanager/internal/repository"
	"taskmanager/internal/storage"
	"taskmanager/internal/upload"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/metrics"
)

const (
	msgTaskNotFound     = "Task not found"
	msgAssigneeNotFound = "Assigned user not found"
)

// Publisher receives task events after a mutation is stored.
type Publisher interface {
	Publish(event models.TaskEvent)
}

// CreateTaskInput mirrors the multipart form of POST /tasks.
type CreateTaskInput struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	DueDate     string `validate:"required"`
	AssignedTo  string `validate:"required"`
	Status      string `validate:"omitempty,oneof=pending in-progress completed"`
	Priority    string `validate:"omitempty,oneof=low medium high"`
}

// UpdateTaskInput holds only the fields present in the request.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	DueDate     *string
	AssignedTo  *string
	Status      *string
	Priority    *string
}

type TaskService struct {
	tasks    repository.TaskStore
	users    repository.UserStore
	blobs    storage.BlobStore
	events   Publisher
	validate *validator.Validate
	metrics  *metrics.Metrics
}

func NewTaskService(tasks repository.TaskStore, users repository.UserStore, blobs storage.BlobStore,
	events Publisher, validate *validator.Validate, m *metrics.Metrics) *TaskService {
	return &TaskService{
		tasks:    tasks,
		users:    users,
		blobs:    blobs,
		events:   events,
		validate: validate,
		metrics:  m,
	}
}

var dueDateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Validation("dueDate must be a date (YYYY-MM-DD)")
}

func parseUserID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, apperr.Validation("assignedTo must be a valid user id")
	}
	return id, nil
}

func (s *TaskService) authorize(req policy.Requester, action policy.Action, res policy.Resource) error {
	d := policy.Decide(req, action, res)
	s.metrics.Decision(string(action), d.Allowed)
	if !d.Allowed {
		logger.SecurityLogger.Warn(d.Reason,
			zap.String("action", string(action)),
			zap.Int("user_id", req.ID),
			zap.String("role", string(req.Role)),
			zap.Int("creator_id", res.CreatorID),
			zap.Int("assignee_id", res.AssigneeID))
		return apperr.Forbidden(d.Reason)
	}
	return nil
}

func (s *TaskService) storeError(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(msgTaskNotFound)
	case errors.Is(err, repository.ErrUnknownUser):
		return apperr.NotFound(msgAssigneeNotFound)
	}
	logger.ErrorLogger.Error(msg, zap.Error(err))
	return apperr.Internal(msg, err)
}

// find loads a task; existence is always settled before any permission check.
func (s *TaskService) find(ctx context.Context, id int) (models.Task, error) {
	return s.findIn(ctx, s.tasks, id)
}

// findLatest bypasses the cache. Mutations decide and append on it.
func (s *TaskService) findLatest(ctx context.Context, id int) (models.Task, error) {
	return s.findIn(ctx, repository.Uncached(s.tasks), id)
}

func (s *TaskService) findIn(ctx context.Context, store repository.TaskStore, id int) (models.Task, error) {
	task, err := store.FindByID(ctx, id)
	if err != nil {
		return models.Task{}, s.storeError(err, "Error fetching task")
	}
	return task, nil
}

func (s *TaskService) ensureUser(ctx context.Context, id int) error {
	_, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgAssigneeNotFound)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return apperr.Internal("Error fetching user", err)
	}
	return nil
}

// decorate fills in per-requester permissions and download URLs.
func (s *TaskService) decorate(ctx context.Context, req policy.Requester, task models.Task) models.Task {
	perms := policy.Permissions(req, policy.ResourceOf(task))
	task.Permissions = &perms
	docs := make([]models.Document, len(task.Documents))
	for i, d := range task.Documents {
		if url, err := s.blobs.URL(ctx, d); err == nil {
			d.URL = url
		} else {
			logger.ErrorLogger.Error("Error building document URL", zap.String("filename", d.Filename), zap.Error(err))
		}
		docs[i] = d
	}
	task.Documents = docs
	return task
}

func (s *TaskService) publish(t models.EventType, task models.Task) {
	if s.events == nil {
		return
	}
	task.Permissions = nil
	s.events.Publish(models.TaskEvent{Type: t, Task: task})
}

// storeFiles pushes an already validated batch to blob storage in parallel.
// On failure every blob written by this call is removed again.
func (s *TaskService) storeFiles(ctx context.Context, files []upload.File) ([]models.Document, error) {
	docs := make([]models.Document, len(files))
	stored := make([]bool, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			rc, err := f.Open()
			if err != nil {
				return apperr.Internal("Error reading upload", err)
			}
			defer rc.Close()
			doc, err := s.blobs.Put(gctx, f.Filename, rc, f.Size, upload.PDFType)
			if err != nil {
				logger.ErrorLogger.Error("Error saving file", zap.String("filename", f.Filename), zap.Error(err))
				return apperr.Internal("Error saving file", err)
			}
			docs[i], stored[i] = doc, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var written []models.Document
		for i, ok := range stored {
			if ok {
				written = append(written, docs[i])
			}
		}
		s.discard(ctx, written)
		return nil, err
	}
	return docs, nil
}

func (s *TaskService) discard(ctx context.Context, docs []models.Document) {
	for _, d := range docs {
		if err := s.blobs.Delete(ctx, d); err != nil {
			logger.ErrorLogger.Error("Error removing orphaned file", zap.String("filename", d.Filename), zap.Error(err))
		}
	}
}

// List returns every task for admins and only the requester's own or
// assigned tasks otherwise.
func (s *TaskService) List(ctx context.Context, req policy.Requester) ([]models.Task, error) {
	if err := s.authorize(req, policy.ActionList, policy.Resource{}); err != nil {
		return nil, err
	}
	filter := repository.TaskFilter{}
	if !policy.SeesAll(req) {
		filter.ParticipantID = req.ID
	}
	tasks, err := s.tasks.Find(ctx, filter)
	if err != nil {
		return nil, s.storeError(err, "Error fetching tasks")
	}
	visible := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !policy.CanRead(req, policy.ResourceOf(t)) {
			continue
		}
		visible = append(visible, s.decorate(ctx, req, t))
	}
	return visible, nil
}

func (s *TaskService) Get(ctx context.Context, req policy.Requester, id int) (models.Task, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := s.authorize(req, policy.ActionRead, policy.ResourceOf(task)); err != nil {
		return models.Task{}, err
	}
	return s.decorate(ctx, req, task), nil
}

func (s *TaskService) Create(ctx context.Context, req policy.Requester, in CreateTaskInput, files []upload.File) (models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validate.Struct(in); err != nil {
		return models.Task{}, validationError(err)
	}
	due, err := parseDueDate(in.DueDate)
	if err != nil {
		return models.Task{}, err
	}
	assignee, err := parseUserID(in.AssignedTo)
	if err != nil {
		return models.Task{}, err
	}
	if err := upload.Validate(files); err != nil {
		return models.Task{}, err
	}

	if err := s.authorize(req, policy.ActionCreate, policy.Resource{CreatorID: req.ID, AssigneeID: assignee}); err != nil {
		return models.Task{}, err
	}
	if assignee != req.ID {
		if err := s.ensureUser(ctx, assignee); err != nil {
			return models.Task{}, err
		}
	}

	task := models.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      models.StatusPending,
		Priority:    models.PriorityMedium,
		DueDate:     due,
		CreatedBy:   models.UserRef{ID: req.ID},
		AssignedTo:  models.UserRef{ID: assignee},
	}
	if in.Status != "" {
		task.Status = models.Status(in.Status)
	}
	if in.Priority != "" {
		task.Priority = models.Priority(in.Priority)
	}

	docs, err := s.storeFiles(ctx, files)
	if err != nil {
		return models.Task{}, err
	}
	task.Documents = docs

	created, err := s.tasks.Insert(ctx, task)
	if err != nil {
		s.discard(ctx, docs)
		return models.Task{}, s.storeError(err, "Error creating task")
	}

	logger.AuditLogger.Info("Task created successfully",
		zap.Int("task_id", created.ID), zap.Int("user_id", req.ID), zap.Int("documents", len(docs)))
	s.publish(models.EventTaskCreated, created)
	return s.decorate(ctx, req, created), nil
}

func (s *TaskService) buildPatch(in UpdateTaskInput) (repository.TaskPatch, *int, error) {
	var patch repository.TaskPatch
	if in.Title != nil {
		v := strings.TrimSpace(*in.Title)
		if v == "" {
			return patch, nil, apperr.Validation("title is required")
		}
		patch.Title = &v
	}
	if in.Description != nil {
		v := strings.TrimSpace(*in.Description)
		if v == "" {
			return patch, nil, apperr.Validation("description is required")
		}
		patch.Description = &v
	}
	if in.Status != nil {
		v := models.Status(*in.Status)
		if !v.Valid() {
			return patch, nil, apperr.Validation("status must be one of: pending in-progress completed")
		}
		patch.Status = &v
	}
	if in.Priority != nil {
		v := models.Priority(*in.Priority)
		if !v.Valid() {
			return patch, nil, apperr.Validation("priority must be one of: low medium high")
		}
		patch.Priority = &v
	}
	if in.DueDate != nil {
		due, err := parseDueDate(*in.DueDate)
		if err != nil {
			return patch, nil, err
		}
		patch.DueDate = &due
	}
	var assignee *int
	// an empty assignedTo is treated as absent
	if in.AssignedTo != nil && strings.TrimSpace(*in.AssignedTo) != "" {
		id, err := parseUserID(*in.AssignedTo)
		if err != nil {
			return patch, nil, err
		}
		assignee = &id
	}
	return patch, assignee, nil
}

// Update applies a partial update and appends any uploaded documents. The
// general update check and the assignee check must both pass. Only the
// uploaded files are checked before existence and ownership; field errors
// come after them.
func (s *TaskService) Update(ctx context.Context, req policy.Requester, id int, in UpdateTaskInput, files []upload.File) (models.Task, error) {
	if err := upload.Validate(files); err != nil {
		return models.Task{}, err
	}

	task, err := s.findLatest(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := s.authorize(req, policy.ActionUpdate, policy.ResourceOf(task)); err != nil {
		return models.Task{}, err
	}
	patch, assignee, err := s.buildPatch(in)
	if err != nil {
		return models.Task{}, err
	}
	if assignee != nil {
		res := policy.Resource{CreatorID: task.CreatedBy.ID, AssigneeID: *assignee}
		if err := s.authorize(req, policy.ActionChangeAssignee, res); err != nil {
			return models.Task{}, err
		}
		if *assignee != task.AssignedTo.ID && *assignee != req.ID {
			if err := s.ensureUser(ctx, *assignee); err != nil {
				return models.Task{}, err
			}
		}
		patch.AssignedTo = assignee
	}

	docs, err := s.storeFiles(ctx, files)
	if err != nil {
		return models.Task{}, err
	}
	if len(docs) > 0 {
		patch.Documents = append(append([]models.Document{}, task.Documents...), docs...)
	}
	if patch.Empty() {
		return s.decorate(ctx, req, task), nil
	}

	updated, err := s.tasks.UpdateByID(ctx, id, patch)
	if err != nil {
		s.discard(ctx, docs)
		return models.Task{}, s.storeError(err, "Error updating task")
	}

	logger.AuditLogger.Info("Task updated", zap.Int("task_id", id), zap.Int("user_id", req.ID), zap.Int("documents_added", len(docs)))
	s.publish(models.EventTaskUpdated, updated)
	return s.decorate(ctx, req, updated), nil
}

// UpdateStatus is the lightweight path open to the assignee as well.
func (s *TaskService) UpdateStatus(ctx context.Context, req policy.Requester, id int, status string) (models.Task, error) {
	task, err := s.findLatest(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := s.authorize(req, policy.ActionChangeStatus, policy.ResourceOf(task)); err != nil {
		return models.Task{}, err
	}
	st := models.Status(strings.TrimSpace(status))
	if !st.Valid() {
		return models.Task{}, apperr.Validation("status must be one of: pending in-progress completed")
	}
	updated, err := s.tasks.UpdateByID(ctx, id, repository.TaskPatch{Status: &st})
	if err != nil {
		return models.Task{}, s.storeError(err, "Error updating task")
	}
	logger.AuditLogger.Info("Task status changed", zap.Int("task_id", id), zap.Int("user_id", req.ID), zap.String("status", string(st)))
	s.publish(models.EventTaskUpdated, updated)
	return s.decorate(ctx, req, updated), nil
}

func (s *TaskService) Delete(ctx context.Context, req policy.Requester, id int) error {
	task, err := s.findLatest(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(req, policy.ActionDelete, policy.ResourceOf(task)); err != nil {
		return err
	}
	if err := s.tasks.DeleteByID(ctx, id); err != nil {
		return s.storeError(err, "Error deleting task")
	}
	s.discard(ctx, task.Documents)

	logger.AuditLogger.Info("Task deleted", zap.Int("task_id", id), zap.Int("user_id", req.ID))
	s.publish(models.EventTaskDeleted, task)
	return nil
}
