package models

import (
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known task statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserRef is the populated form of a user reference on a task.
type UserRef struct {
	ID    int    `json:"id"`
	Email string `json:"email,omitempty"`
}

type Document struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	URL      string `json:"url,omitempty"`
}

// Permissions tells a client which controls to show for a task.
type Permissions struct {
	Edit         bool `json:"edit"`
	Delete       bool `json:"delete"`
	Reassign     bool `json:"reassign"`
	ChangeStatus bool `json:"changeStatus"`
}

type Task struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      Status       `json:"status"`
	Priority    Priority     `json:"priority"`
	DueDate     time.Time    `json:"dueDate"`
	CreatedBy   UserRef      `json:"createdBy"`
	AssignedTo  UserRef      `json:"assignedTo"`
	Documents   []Document   `json:"documents"`
	Permissions *Permissions `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type EventType string

const (
	EventTaskCreated EventType = "task.created"
	EventTaskUpdated EventType = "task.updated"
	EventTaskDeleted EventType = "task.deleted"
)

// TaskEvent is pushed to live subscribers after a successful mutation.
type TaskEvent struct {
	Type EventType `json:"type"`
	Task Task      `json:"task"`
}
