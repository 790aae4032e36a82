// Package events pushes task lifecycle notifications to websocket clients.
package events

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"taskhub/pkg/logger"
)

const (
	TaskCreated = "task.created"
	TaskUpdated = "task.updated"
	TaskDeleted = "task.deleted"
)

// Event is what clients receive on the feed.
type Event struct {
	Event  string `json:"event"`
	TaskID int    `json:"task_id"`
}

// Client wraps a websocket connection; the mutex serializes writes.
type Client struct {
	Conn *websocket.Conn
	Mu   sync.Mutex
}

// Hub fans events out to every connected client.
type Hub struct {
	Clients    map[*Client]bool
	Broadcast  chan Event
	Register   chan *Client
	Unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Broadcast:  make(chan Event, 16),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Publish is called from the task handlers after a successful mutation.
// Delivery is best effort; a full channel drops the event rather than
// blocking the request.
func (h *Hub) Publish(event string, taskID int) {
	if h == nil {
		return
	}
	select {
	case h.Broadcast <- Event{Event: event, TaskID: taskID}:
	default:
		logger.SystemLogger.Warn("Event dropped, broadcast channel full",
			zap.String("event", event), zap.Int("task_id", taskID))
	}
}

// Run loops over register, unregister and broadcast until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Clients[client] = true
		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				client.Conn.Close()
			}
		case event := <-h.Broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			for client := range h.Clients {
				client.Mu.Lock()
				err := client.Conn.WriteMessage(websocket.TextMessage, payload)
				client.Mu.Unlock()
				if err != nil {
					delete(h.Clients, client)
					client.Conn.Close()
				}
			}
		}
	}
}
