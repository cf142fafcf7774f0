// Package cache keeps recently read tasks in Redis in front of the task store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"taskmanager/internal/models"
	"taskmanager/internal/repository"
	"taskmanager/pkg/logger"
)

const DefaultTTL = time.Hour

func cacheKey(id int) string { return fmt.Sprintf("task:%d", id) }

// CachedTaskStore is a read-through cache over a TaskStore. Redis errors are
// logged and the call falls through to the inner store.
type CachedTaskStore struct {
	inner  repository.TaskStore
	client *redis.Client
	ttl    time.Duration
}

var _ repository.TaskStore = (*CachedTaskStore)(nil)

func NewCachedTaskStore(inner repository.TaskStore, client *redis.Client, ttl time.Duration) *CachedTaskStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedTaskStore{inner: inner, client: client, ttl: ttl}
}

func (s *CachedTaskStore) get(ctx context.Context, id int) (models.Task, bool) {
	cached, err := s.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.ErrorLogger.Error("Error reading task cache", zap.Int("task_id", id), zap.Error(err))
		}
		return models.Task{}, false
	}
	var task models.Task
	if err := json.Unmarshal(cached, &task); err != nil {
		logger.ErrorLogger.Error("Error decoding cached task", zap.Int("task_id", id), zap.Error(err))
		return models.Task{}, false
	}
	return task, true
}

func (s *CachedTaskStore) set(ctx context.Context, task models.Task) {
	task.Permissions = nil
	data, err := json.Marshal(task)
	if err != nil {
		logger.ErrorLogger.Error("Error encoding task to JSON", zap.Int("task_id", task.ID), zap.Error(err))
		return
	}
	if err := s.client.Set(ctx, cacheKey(task.ID), data, s.ttl).Err(); err != nil {
		logger.ErrorLogger.Error("Error caching task", zap.Int("task_id", task.ID), zap.Error(err))
	}
}

func (s *CachedTaskStore) invalidate(ctx context.Context, id int) {
	if err := s.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		logger.ErrorLogger.Error("Error invalidating task cache", zap.Int("task_id", id), zap.Error(err))
	}
}

func (s *CachedTaskStore) Unwrap() repository.TaskStore { return s.inner }

// Find always hits the store. Its rows are not cached: a list read that
// finishes after a concurrent update would otherwise pin the old row.
func (s *CachedTaskStore) Find(ctx context.Context, filter repository.TaskFilter) ([]models.Task, error) {
	return s.inner.Find(ctx, filter)
}

func (s *CachedTaskStore) FindByID(ctx context.Context, id int) (models.Task, error) {
	if task, ok := s.get(ctx, id); ok {
		return task, nil
	}
	task, err := s.inner.FindByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	s.set(ctx, task)
	return task, nil
}

func (s *CachedTaskStore) Insert(ctx context.Context, task models.Task) (models.Task, error) {
	created, err := s.inner.Insert(ctx, task)
	if err != nil {
		return models.Task{}, err
	}
	s.set(ctx, created)
	return created, nil
}

// UpdateByID drops the key before and after the write so a read that
// raced the update cannot leave its snapshot behind.
func (s *CachedTaskStore) UpdateByID(ctx context.Context, id int, patch repository.TaskPatch) (models.Task, error) {
	s.invalidate(ctx, id)
	defer s.invalidate(ctx, id)
	return s.inner.UpdateByID(ctx, id, patch)
}

func (s *CachedTaskStore) DeleteByID(ctx context.Context, id int) error {
	s.invalidate(ctx, id)
	defer s.invalidate(ctx, id)
	return s.inner.DeleteByID(ctx, id)
}
