package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"taskmanager/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    role VARCHAR(32) NOT NULL DEFAULT 'user',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tasks (
    id SERIAL PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL,
    status VARCHAR(32) NOT NULL DEFAULT 'pending',
    priority VARCHAR(32) NOT NULL DEFAULT 'medium',
    due_date TIMESTAMPTZ NOT NULL,
    created_by INT NOT NULL REFERENCES users (id),
    assigned_to INT NOT NULL REFERENCES users (id),
    documents JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS tasks_created_by_idx ON tasks (created_by);
CREATE INDEX IF NOT EXISTS tasks_assigned_to_idx ON tasks (assigned_to);
`

// CreateTableIfNotExists applies the schema. It is safe to run on every start.
func CreateTableIfNotExists(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// CreateAdminUser provisions an admin account out of band. It reports false
// when the email is already taken and leaves that account untouched.
func CreateAdminUser(ctx context.Context, users UserStore, email, password string) (bool, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	_, err = users.Create(ctx, email, string(hashedPassword), models.RoleAdmin)
	if errors.Is(err, ErrDuplicateEmail) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func DeleteAllTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS users;
    `)
	if err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}
