package client

import "time"

// The types below mirror the JSON the API returns. They are declared here so
// callers outside this module can name them.

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

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type UserRef struct {
	ID    int    `json:"id"`
	Email string `json:"email,omitempty"`
}

// Attachment is a document already stored on a task.
type Attachment struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	URL      string `json:"url,omitempty"`
}

// Permissions says which controls the signed-in user may use on a task.
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
	Documents   []Attachment `json:"documents"`
	Permissions *Permissions `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
