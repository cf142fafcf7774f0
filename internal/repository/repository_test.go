package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
)

var taskCols = []string{
	"id", "title", "description", "status", "priority", "due_date",
	"created_by", "email", "assigned_to", "email", "documents", "created_at", "updated_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func taskRow(id, creator, assignee int, docs string) *sqlmock.Rows {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(taskCols).AddRow(
		id, "T", "D", "pending", "medium", now,
		creator, "creator@example.com", assignee, "assignee@example.com",
		[]byte(docs), now, now,
	)
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("a@example.com", "hash", "user").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(7, now, now))

	u, err := repo.Create(context.Background(), "a@example.com", "hash", models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, 7, u.ID)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	_, err := repo.Create(context.Background(), "a@example.com", "hash", models.RoleUser)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password", "role", "created_at", "updated_at"}).
			AddRow(1, "admin@example.com", "hash", "admin", now, now))

	u, err := repo.FindByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.Equal(t, "hash", u.PasswordHash)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepositoryFindScopedToParticipant(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.created_by = $1 OR t.assigned_to = $1")).
		WithArgs(2).
		WillReturnRows(taskRow(10, 2, 2, `[{"filename":"a.pdf","path":"uploads/a.pdf"}]`))

	tasks, err := repo.Find(context.Background(), TaskFilter{ParticipantID: 2})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "creator@example.com", tasks[0].CreatedBy.Email)
	assert.Equal(t, []models.Document{{Filename: "a.pdf", Path: "uploads/a.pdf"}}, tasks[0].Documents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryFindAll(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery("ORDER BY t.created_at DESC").
		WithArgs().
		WillReturnRows(taskRow(1, 2, 3, `[]`))

	tasks, err := repo.Find(context.Background(), TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Empty(t, tasks[0].Documents)
	assert.NotNil(t, tasks[0].Documents)
}

func TestTaskRepositoryFindByIDMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).WithArgs(99).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepositoryInsert(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO tasks").
		WithArgs("T", "D", "pending", "medium", due, 2, 2, `[]`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).WithArgs(5).WillReturnRows(taskRow(5, 2, 2, `[]`))

	task, err := repo.Insert(context.Background(), models.Task{
		Title: "T", Description: "D", Status: models.StatusPending, Priority: models.PriorityMedium,
		DueDate: due, CreatedBy: models.UserRef{ID: 2}, AssignedTo: models.UserRef{ID: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, task.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryInsertUnknownAssignee(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectQuery("INSERT INTO tasks").WillReturnError(&pq.Error{Code: "23503"})

	_, err := repo.Insert(context.Background(), models.Task{CreatedBy: models.UserRef{ID: 1}, AssignedTo: models.UserRef{ID: 404}})
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestTaskRepositoryUpdateByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	title := "New"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET title = $1, documents = $2, updated_at = NOW() WHERE id = $3")).
		WithArgs("New", `[{"filename":"a.pdf","path":"uploads/a.pdf"}]`, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).WithArgs(5).
		WillReturnRows(taskRow(5, 2, 2, `[{"filename":"a.pdf","path":"uploads/a.pdf"}]`))

	task, err := repo.UpdateByID(context.Background(), 5, TaskPatch{
		Title:     &title,
		Documents: []models.Document{{Filename: "a.pdf", Path: "uploads/a.pdf", URL: "/uploads/a.pdf"}},
	})
	require.NoError(t, err)
	assert.Len(t, task.Documents, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryUpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)
	status := models.StatusCompleted

	mock.ExpectExec("UPDATE tasks SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.UpdateByID(context.Background(), 5, TaskPatch{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepositoryDeleteByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).WithArgs(6).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).WithArgs(7).WillReturnError(errors.New("connection reset"))

	assert.NoError(t, repo.DeleteByID(context.Background(), 5))
	assert.ErrorIs(t, repo.DeleteByID(context.Background(), 6), ErrNotFound)
	err := repo.DeleteByID(context.Background(), 7)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestCreateAdminUserIsIdempotent(t *testing.T) {
	db, mock := newMock(t)
	users := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("admin@example.com", sqlmock.AnyArg(), "admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))
	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	created, err := CreateAdminUser(context.Background(), users, "admin@example.com", "admin123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = CreateAdminUser(context.Background(), users, "admin@example.com", "admin123")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCreateTableIfNotExists(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.NoError(t, CreateTableIfNotExists(context.Background(), db))
}
