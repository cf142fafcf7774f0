package repository

import (
	"context"
	"errors"
	"time"

	"taskmanager/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUnknownUser is returned when a task references a user id that does not exist.
	ErrUnknownUser = errors.New("unknown user")
)

// TaskFilter narrows Find. A zero ParticipantID lists every task.
type TaskFilter struct {
	ParticipantID int
}

// TaskPatch is a partial update; nil fields are left untouched. A nil
// Documents slice keeps the stored list, a non-nil one replaces it.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *models.Status
	Priority    *models.Priority
	DueDate     *time.Time
	AssignedTo  *int
	Documents   []models.Document
}

// Empty reports whether applying the patch would change nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.DueDate == nil && p.AssignedTo == nil && p.Documents == nil
}

type TaskStore interface {
	Find(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	FindByID(ctx context.Context, id int) (models.Task, error)
	Insert(ctx context.Context, task models.Task) (models.Task, error)
	UpdateByID(ctx context.Context, id int, patch TaskPatch) (models.Task, error)
	DeleteByID(ctx context.Context, id int) error
}

// Unwrapper is implemented by caching decorators; Unwrap returns the store
// behind the cache.
type Unwrapper interface {
	Unwrap() TaskStore
}

// Uncached strips every caching layer off s. Read-modify-write paths read
// through it so they never start from a cached snapshot.
func Uncached(s TaskStore) TaskStore {
	for {
		u, ok := s.(Unwrapper)
		if !ok {
			return s
		}
		s = u.Unwrap()
	}
}

type UserStore interface {
	Create(ctx context.Context, email, passwordHash string, role models.Role) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id int) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
}
