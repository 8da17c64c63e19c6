// Package realtime fans execution stream events out to websocket
// clients. Clients subscribe to workflow channels and receive every
// event the engine emits for runs of those workflows.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowbase-io/flowbase/internal/engine"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// message is the client-facing protocol. Clients send subscribe and
// unsubscribe frames; the hub sends event frames.
type message struct {
	Type       string          `json:"type"`
	WorkflowID string          `json:"workflowId,omitempty"`
	Event      json.RawMessage `json:"event,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu       sync.Mutex
	channels map[string]bool
}

// Hub tracks connected clients and their workflow subscriptions.
type Hub struct {
	log logger.Logger

	mu      sync.RWMutex
	clients map[*client]bool
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{log: log, clients: make(map[*client]bool)}
}

// Broadcast delivers an engine event to every client subscribed to its
// workflow. Slow clients are dropped rather than blocking the stream.
func (h *Hub) Broadcast(event engine.Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to encode realtime event", "error", err)
		return
	}
	payload, err := json.Marshal(message{Type: "event", WorkflowID: event.WorkflowID, Event: raw})
	if err != nil {
		return
	}

	h.mu.RLock()
	var stale []*client
	for c := range h.clients {
		if !c.subscribed(event.WorkflowID) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.remove(c)
	}
}

// ServeHTTP upgrades the connection and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		hub:      h,
		channels: make(map[string]bool),
	}
	// ?workflowId=... subscribes immediately without a subscribe frame.
	if workflowID := r.URL.Query().Get("workflowId"); workflowID != "" {
		c.channels[workflowID] = true
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (c *client) subscribed(workflowID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels["*"] || c.channels[workflowID]
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "subscribe":
			if msg.WorkflowID != "" {
				c.mu.Lock()
				c.channels[msg.WorkflowID] = true
				c.mu.Unlock()
			}
		case "unsubscribe":
			if msg.WorkflowID != "" {
				c.mu.Lock()
				delete(c.channels, msg.WorkflowID)
				c.mu.Unlock()
			}
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
