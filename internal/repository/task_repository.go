package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"taskmanager/internal/models"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskSelect = `SELECT t.id, t.title, t.description, t.status, t.priority, t.due_date,
       t.created_by, c.email, t.assigned_to, a.email, t.documents, t.created_at, t.updated_at
  FROM tasks t
  JOIN users c ON c.id = t.created_by
  JOIN users a ON a.id = t.assigned_to`

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var (
		t    models.Task
		docs []byte
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate,
		&t.CreatedBy.ID, &t.CreatedBy.Email, &t.AssignedTo.ID, &t.AssignedTo.Email,
		&docs, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Task{}, err
	}
	t.Documents = []models.Document{}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &t.Documents); err != nil {
			return models.Task{}, fmt.Errorf("decode documents of task %d: %w", t.ID, err)
		}
	}
	return t, nil
}

func encodeDocuments(docs []models.Document) (string, error) {
	if docs == nil {
		docs = []models.Document{}
	}
	stored := make([]models.Document, len(docs))
	for i, d := range docs {
		// URLs are derived per response and never persisted
		stored[i] = models.Document{Filename: d.Filename, Path: d.Path}
	}
	b, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("encode documents: %w", err)
	}
	return string(b), nil
}

func (r *TaskRepository) Find(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	query := taskSelect
	var args []any
	if filter.ParticipantID != 0 {
		query += " WHERE t.created_by = $1 OR t.assigned_to = $1"
		args = append(args, filter.ParticipantID)
	}
	query += " ORDER BY t.created_at DESC, t.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id int) (models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, taskSelect+" WHERE t.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("find task %d: %w", id, err)
	}
	return t, nil
}

func (r *TaskRepository) Insert(ctx context.Context, task models.Task) (models.Task, error) {
	docs, err := encodeDocuments(task.Documents)
	if err != nil {
		return models.Task{}, err
	}
	var id int
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO tasks (title, description, status, priority, due_date, created_by, assigned_to, documents)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		task.Title, task.Description, string(task.Status), string(task.Priority), task.DueDate,
		task.CreatedBy.ID, task.AssignedTo.ID, docs,
	).Scan(&id)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return models.Task{}, ErrUnknownUser
		}
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return r.FindByID(ctx, id)
}

func (r *TaskRepository) UpdateByID(ctx context.Context, id int, patch TaskPatch) (models.Task, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.Priority != nil {
		set("priority", string(*patch.Priority))
	}
	if patch.DueDate != nil {
		set("due_date", *patch.DueDate)
	}
	if patch.AssignedTo != nil {
		set("assigned_to", *patch.AssignedTo)
	}
	if patch.Documents != nil {
		docs, err := encodeDocuments(patch.Documents)
		if err != nil {
			return models.Task{}, err
		}
		set("documents", docs)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return models.Task{}, ErrUnknownUser
		}
		return models.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	if n == 0 {
		return models.Task{}, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *TaskRepository) DeleteByID(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
