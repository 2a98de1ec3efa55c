// Package broadcast fans event-directory changes out to websocket clients.
//
// Clients subscribe to a single church's room; every event mutation
// publishes a typed JSON message to that room. Publishing is
// fire-and-forget: a failed or slow client is dropped, never the request.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types published on a church room.
const (
	EventNew     = "event:new"
	EventUpdated = "event:updated"
	EventDeleted = "event:deleted"
)

// Message is the wire shape of a broadcast.
type Message struct {
	Type    string `json:"type"`
	Church  string `json:"church"`
	Payload any    `json:"payload"`
}

// client is one connected subscriber. Sends are buffered; a full buffer
// means the client is too slow and gets disconnected.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks rooms of connected clients keyed by church id.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*client]struct{}
	log    *zap.Logger
	closed bool

	upgrader websocket.Upgrader
}

// NewHub creates a Hub. checkOrigin decides whether a subscribe request's
// Origin is acceptable; nil allows all origins.
func NewHub(logger *zap.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Subscribe upgrades the request to a websocket and joins the client to the
// given church room until the connection drops.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, churchID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	room, ok := h.rooms[churchID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[churchID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("client subscribed", zap.String("church", churchID))

	go h.writeLoop(c)
	h.readLoop(c, churchID)
}

// Publish sends a message to every client in the church's room.
// It never blocks the caller; clients that cannot keep up are dropped.
func (h *Hub) Publish(churchID, msgType string, payload any) {
	data, err := json.Marshal(Message{Type: msgType, Church: churchID, Payload: payload})
	if err != nil {
		h.log.Warn("broadcast marshal failed", zap.String("type", msgType), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[churchID] {
		select {
		case c.send <- data:
		default:
			// Slow client: drop it rather than blocking publishers.
			h.removeLocked(churchID, c)
		}
	}
}

// Close disconnects all clients. Called at shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for churchID, room := range h.rooms {
		for c := range room {
			close(c.send)
			c.conn.Close()
		}
		delete(h.rooms, churchID)
	}
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readLoop drains inbound frames so pings/closes are processed; the channel
// is one-way and any client payloads are ignored.
func (h *Hub) readLoop(c *client, churchID string) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(churchID, c)
		h.mu.Unlock()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// removeLocked removes a client from a room. Caller holds h.mu.
func (h *Hub) removeLocked(churchID string, c *client) {
	room, ok := h.rooms[churchID]
	if !ok {
		return
	}
	if _, present := room[c]; !present {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, churchID)
	}
	close(c.send)
	c.conn.Close()
}
