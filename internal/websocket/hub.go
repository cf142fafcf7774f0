package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"taskmanager/internal/middleware"
	"taskmanager/internal/models"
	"taskmanager/internal/policy"
	"taskmanager/pkg/logger"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a WebSocket connection and the user who opened it.
type Client struct {
	conn      Conn
	requester policy.Requester
	mu        sync.Mutex
}

func NewClient(conn Conn, req policy.Requester) *Client {
	return &Client{conn: conn, requester: req}
}

func (c *Client) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub fans task events out to connected clients. Every client only receives
// events for tasks its requester may read.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan models.TaskEvent
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.TaskEvent, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run drives the hub loop until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.conn.Close()
			}
			h.clients = map[*Client]bool{}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			h.drop(client)
		case event := <-h.broadcast:
			h.fanOut(event)
		}
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.conn.Close()
	}
}

func (h *Hub) fanOut(event models.TaskEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		logger.ErrorLogger.Error("Error encoding task event", zap.Error(err))
		return
	}
	res := policy.ResourceOf(event.Task)
	for client := range h.clients {
		if !policy.CanRead(client.requester, res) {
			continue
		}
		if err := client.write(msg); err != nil {
			logger.SystemLogger.Info("Dropping websocket client", zap.Int("user_id", client.requester.ID), zap.Error(err))
			h.drop(client)
		}
	}
}

// Register blocks until the hub has accepted the client or stopped.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.conn.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues an event. A full queue drops the event rather than stall the
// request that produced it.
func (h *Hub) Publish(event models.TaskEvent) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	default:
		logger.SystemLogger.Warn("Task event dropped", zap.String("type", string(event.Type)), zap.Int("task_id", event.Task.ID))
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler serves one websocket connection. It must run after
// middleware.UseQueryToken.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		req, ok := conn.Locals(middleware.RequesterKey).(policy.Requester)
		if !ok {
			conn.Close()
			return
		}
		client := NewClient(conn, req)
		h.Register(client)
		defer h.Unregister(client)

		// clients only listen; read until the connection closes
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
