// Package client is a Go client for the task manager HTTP API.
//
// A Session returned by Login or Register carries the bearer token and the
// signed-in user; every task call takes the session explicitly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a client for the API rooted at baseURL, e.g. http://localhost:3004/api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Session struct {
	Token     string      `json:"token"`
	User      User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

// Document is a PDF to attach to a task.
type Document struct {
	Name string
	Data io.Reader
}

// TaskInput is sent as multipart form fields. Nil fields are omitted, so on
// update only the set fields change.
type TaskInput struct {
	Title       *string
	Description *string
	DueDate     *string
	AssignedTo  *int
	Status      *Status
	Priority    *Priority
}

func (c *Client) Register(ctx context.Context, email, password string) (*Session, error) {
	return c.authenticate(ctx, "/auth/register", email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	return c.authenticate(ctx, "/auth/login", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	var s Session
	if err := c.do(ctx, nil, http.MethodPost, path, "application/json", bytes.NewReader(body), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListTasks(ctx context.Context, s *Session) ([]Task, error) {
	var tasks []Task
	err := c.do(ctx, s, http.MethodGet, "/tasks", "", nil, &tasks)
	return tasks, err
}

func (c *Client) GetTask(ctx context.Context, s *Session, id int) (Task, error) {
	var task Task
	err := c.do(ctx, s, http.MethodGet, taskPath(id), "", nil, &task)
	return task, err
}

func (c *Client) CreateTask(ctx context.Context, s *Session, in TaskInput, docs ...Document) (Task, error) {
	return c.sendTask(ctx, s, http.MethodPost, "/tasks", in, docs)
}

// UpdateTask changes the set fields and appends docs to the task's documents.
func (c *Client) UpdateTask(ctx context.Context, s *Session, id int, in TaskInput, docs ...Document) (Task, error) {
	return c.sendTask(ctx, s, http.MethodPut, taskPath(id), in, docs)
}

func (c *Client) UpdateStatus(ctx context.Context, s *Session, id int, status Status) (Task, error) {
	body, err := json.Marshal(map[string]Status{"status": status})
	if err != nil {
		return Task{}, err
	}
	var task Task
	err = c.do(ctx, s, http.MethodPatch, taskPath(id)+"/status", "application/json", bytes.NewReader(body), &task)
	return task, err
}

func (c *Client) DeleteTask(ctx context.Context, s *Session, id int) error {
	return c.do(ctx, s, http.MethodDelete, taskPath(id), "", nil, nil)
}

// ListUsers returns the users the session may assign tasks to.
func (c *Client) ListUsers(ctx context.Context, s *Session) ([]User, error) {
	var users []User
	err := c.do(ctx, s, http.MethodGet, "/users", "", nil, &users)
	return users, err
}

func taskPath(id int) string { return "/tasks/" + strconv.Itoa(id) }

func (c *Client) sendTask(ctx context.Context, s *Session, method, path string, in TaskInput, docs []Document) (Task, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]*string{
		"title":       in.Title,
		"description": in.Description,
		"dueDate":     in.DueDate,
	}
	if in.AssignedTo != nil {
		v := strconv.Itoa(*in.AssignedTo)
		fields["assignedTo"] = &v
	}
	if in.Status != nil {
		v := string(*in.Status)
		fields["status"] = &v
	}
	if in.Priority != nil {
		v := string(*in.Priority)
		fields["priority"] = &v
	}
	for name, value := range fields {
		if value == nil {
			continue
		}
		if err := w.WriteField(name, *value); err != nil {
			return Task{}, err
		}
	}
	for _, d := range docs {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="documents"; filename=%q`, d.Name))
		h.Set("Content-Type", "application/pdf")
		part, err := w.CreatePart(h)
		if err != nil {
			return Task{}, err
		}
		if _, err := io.Copy(part, d.Data); err != nil {
			return Task{}, fmt.Errorf("read %s: %w", d.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return Task{}, err
	}

	var task Task
	err := c.do(ctx, s, method, path, w.FormDataContentType(), &buf, &task)
	return task, err
}

func (c *Client) do(ctx context.Context, s *Session, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s != nil {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
