// Package hub provides connection management for WebSocket chat clients.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrBufferFull is returned when a connection's send buffer is full.
	ErrBufferFull = errors.New("send buffer full")
	// ErrNotRegistered is returned when sending to a connection the hub no longer tracks.
	ErrNotRegistered = errors.New("connection not registered")
)

// Connection represents a single WebSocket connection.
type Connection struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	mu     sync.Mutex
}

// Hub tracks connections and which user each one speaks for.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// users maps user_id to the set of its connection IDs
	users map[string]map[string]bool

	unregister chan *Connection
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		users:       make(map[string]map[string]bool),
		unregister:  make(chan *Connection),
		done:        make(chan struct{}),
	}
}

// Run processes unregistrations until ctx is cancelled. After Run returns,
// Unregister removes connections inline.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-h.unregister:
			h.remove(conn)
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	h.unbindLocked(conn)
	close(conn.Send)
	log.Printf("Connection unregistered: %s", conn.ID)
}

// NewConnection wraps a websocket in an unregistered connection.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()
	log.Printf("Connection registered: %s", conn.ID)
}

// Unregister removes a connection and closes its send channel. It is safe to
// call more than once.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		h.remove(conn)
	}
}

// BindUser binds a connection to a user, replacing any previous binding.
func (h *Hub) BindUser(conn *Connection, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(conn)
	conn.UserID = userID
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]bool)
	}
	h.users[userID][conn.ID] = true
}

func (h *Hub) unbindLocked(conn *Connection) {
	if conn.UserID == "" || h.users[conn.UserID] == nil {
		return
	}
	delete(h.users[conn.UserID], conn.ID)
	if len(h.users[conn.UserID]) == 0 {
		delete(h.users, conn.UserID)
	}
}

// SendToUser queues data on every connection bound to the user and returns
// how many connections accepted it. A connection whose buffer is full is dropped.
func (h *Hub) SendToUser(userID string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for connID := range h.users[userID] {
		conn, ok := h.connections[connID]
		if !ok {
			continue
		}
		select {
		case conn.Send <- data:
			delivered++
		default:
			log.Printf("Connection %s buffer full, closing", connID)
			go h.Unregister(conn)
		}
	}
	return delivered
}

// SendJSONToUser marshals v and sends it to all of the user's connections.
func (h *Hub) SendJSONToUser(userID string, v interface{}) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return h.SendToUser(userID, data), nil
}

// SendToConnection sends a message to a specific connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return ErrNotRegistered
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// UserCount returns the number of users with at least one bound connection.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// HasActiveConnections checks if a user has any bound connections.
func (h *Hub) HasActiveConnections(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
