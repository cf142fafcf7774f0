package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"taskmanager/internal/models"
	"taskmanager/internal/repository"
)

const DefaultLocalSize = 1024

// LocalTaskStore is an in-process LRU in front of a TaskStore, used when no
// Redis is configured. It is only coherent for a single API instance.
type LocalTaskStore struct {
	inner repository.TaskStore
	lru   *lru.LRU[int, models.Task]
}

var _ repository.TaskStore = (*LocalTaskStore)(nil)

func NewLocalTaskStore(inner repository.TaskStore, size int, ttl time.Duration) *LocalTaskStore {
	if size <= 0 {
		size = DefaultLocalSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LocalTaskStore{inner: inner, lru: lru.NewLRU[int, models.Task](size, nil, ttl)}
}

func (s *LocalTaskStore) set(task models.Task) {
	task.Permissions = nil
	s.lru.Add(task.ID, task)
}

func (s *LocalTaskStore) Unwrap() repository.TaskStore { return s.inner }

func (s *LocalTaskStore) Find(ctx context.Context, filter repository.TaskFilter) ([]models.Task, error) {
	return s.inner.Find(ctx, filter)
}

func (s *LocalTaskStore) FindByID(ctx context.Context, id int) (models.Task, error) {
	if task, ok := s.lru.Get(id); ok {
		return task, nil
	}
	task, err := s.inner.FindByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	s.set(task)
	return task, nil
}

func (s *LocalTaskStore) Insert(ctx context.Context, task models.Task) (models.Task, error) {
	created, err := s.inner.Insert(ctx, task)
	if err != nil {
		return models.Task{}, err
	}
	s.set(created)
	return created, nil
}

func (s *LocalTaskStore) UpdateByID(ctx context.Context, id int, patch repository.TaskPatch) (models.Task, error) {
	s.lru.Remove(id)
	defer s.lru.Remove(id)
	return s.inner.UpdateByID(ctx, id, patch)
}

func (s *LocalTaskStore) DeleteByID(ctx context.Context, id int) error {
	s.lru.Remove(id)
	defer s.lru.Remove(id)
	return s.inner.DeleteByID(ctx, id)
}
