// Package testutil provides in-memory stand-ins for the Postgres stores and
// blob storage so services and handlers can be tested without a database.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"taskmanager/internal/models"
	"taskmanager/internal/repository"
)

type UserStore struct {
	mu     sync.Mutex
	nextID int
	users  map[int]models.User
}

var _ repository.UserStore = (*UserStore)(nil)

func NewUserStore() *UserStore {
	return &UserStore{nextID: 1, users: map[int]models.User{}}
}

func (s *UserStore) Create(_ context.Context, email, passwordHash string, role models.Role) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return models.User{}, repository.ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	u := models.User{ID: s.nextID, Email: email, PasswordHash: passwordHash, Role: role, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	s.nextID++
	return u, nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (s *UserStore) FindByID(_ context.Context, id int) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *UserStore) List(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// Delete removes a user, simulating an account removed after a token was issued.
func (s *UserStore) Delete(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *UserStore) email(id int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u.Email, ok
}

// TaskStore keeps tasks in memory and checks user references the way the
// foreign keys do.
type TaskStore struct {
	mu     sync.Mutex
	users  *UserStore
	nextID int
	tasks  map[int]models.Task

	// FailWrites makes Insert and UpdateByID fail, as a lost connection would.
	FailWrites bool
}

var _ repository.TaskStore = (*TaskStore)(nil)

var ErrStoreDown = errors.New("store unavailable")

func NewTaskStore(users *UserStore) *TaskStore {
	return &TaskStore{users: users, nextID: 1, tasks: map[int]models.Task{}}
}

func (s *TaskStore) populate(t models.Task) (models.Task, error) {
	creator, ok := s.users.email(t.CreatedBy.ID)
	if !ok {
		return models.Task{}, repository.ErrUnknownUser
	}
	assignee, ok := s.users.email(t.AssignedTo.ID)
	if !ok {
		return models.Task{}, repository.ErrUnknownUser
	}
	t.CreatedBy.Email = creator
	t.AssignedTo.Email = assignee
	return t, nil
}

func clone(t models.Task) models.Task {
	docs := make([]models.Document, len(t.Documents))
	copy(docs, t.Documents)
	t.Documents = docs
	t.Permissions = nil
	return t
}

func (s *TaskStore) Find(_ context.Context, filter repository.TaskFilter) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := []models.Task{}
	for _, t := range s.tasks {
		if filter.ParticipantID != 0 && t.CreatedBy.ID != filter.ParticipantID && t.AssignedTo.ID != filter.ParticipantID {
			continue
		}
		tasks = append(tasks, clone(t))
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID > tasks[j].ID })
	return tasks, nil
}

func (s *TaskStore) FindByID(_ context.Context, id int) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, repository.ErrNotFound
	}
	return clone(t), nil
}

func (s *TaskStore) Insert(_ context.Context, task models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return models.Task{}, ErrStoreDown
	}
	task, err := s.populate(task)
	if err != nil {
		return models.Task{}, err
	}
	now := time.Now().UTC()
	task.ID = s.nextID
	task.CreatedAt, task.UpdatedAt = now, now
	if task.Documents == nil {
		task.Documents = []models.Document{}
	}
	s.nextID++
	s.tasks[task.ID] = clone(task)
	return clone(task), nil
}

func (s *TaskStore) UpdateByID(_ context.Context, id int, patch repository.TaskPatch) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return models.Task{}, ErrStoreDown
	}
	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, repository.ErrNotFound
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		t.DueDate = *patch.DueDate
	}
	if patch.AssignedTo != nil {
		t.AssignedTo = models.UserRef{ID: *patch.AssignedTo}
	}
	if patch.Documents != nil {
		t.Documents = patch.Documents
	}
	t, err := s.populate(t)
	if err != nil {
		return models.Task{}, err
	}
	t.UpdatedAt = time.Now().UTC()
	s.tasks[id] = clone(t)
	return clone(t), nil
}

func (s *TaskStore) DeleteByID(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// Len reports how many tasks are stored.
func (s *TaskStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// BlobStore keeps uploaded bytes in memory.
type BlobStore struct {
	mu    sync.Mutex
	n     int
	blobs map[string][]byte

	// FailPut makes every Put fail.
	FailPut bool
	// FailAfter, when positive, lets that many Puts succeed and fails the rest.
	FailAfter int
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: map[string][]byte{}}
}

func (b *BlobStore) Put(_ context.Context, originalName string, r io.Reader, _ int64, _ string) (models.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailPut || (b.FailAfter > 0 && b.n >= b.FailAfter) {
		return models.Document{}, errors.New("blob storage unavailable")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return models.Document{}, err
	}
	b.n++
	name := fmt.Sprintf("%d-%s", b.n, originalName)
	b.blobs[name] = buf.Bytes()
	return models.Document{Filename: name, Path: "mem/" + name}, nil
}

func (b *BlobStore) Delete(_ context.Context, doc models.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, doc.Filename)
	return nil
}

func (b *BlobStore) URL(_ context.Context, doc models.Document) (string, error) {
	return "/uploads/" + doc.Filename, nil
}

// Len reports how many blobs are currently stored.
func (b *BlobStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}
