package websocket

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Conn is the slice of *websocket.Conn the hub needs. Kept as an
// interface so tests can register fakes.
type Conn interface {
	WriteJSON(v interface{}) error
}

// Client binds one live connection to an identified user. All writes
// to the connection go through WriteJSON, which serializes them: the
// underlying websocket allows only one concurrent writer, and pushes,
// presence broadcasts, and queue replays come from different
// goroutines.
type Client struct {
	UserID uuid.UUID

	mu   sync.Mutex
	conn Conn
}

func NewClient(userID uuid.UUID, conn Conn) *Client {
	return &Client{UserID: userID, conn: conn}
}

func (c *Client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub is the presence registry: one addressable connection per user.
// It is process-local; a deployment with more than one socket process
// needs this behind a shared store before it can route across
// instances.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
	}
}

// Register inserts or overwrites the user's connection. A reconnect
// supersedes the previous connection without closing it.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.UserID] = client
	h.mu.Unlock()
	log.Printf("Client registered: %s", client.UserID)
	h.broadcastOnlineUsers()
}

// Unregister removes the entry only while it still points at this
// exact connection. A disconnect of a connection that has already been
// superseded must not take down the fresher registration.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.UserID]
	removed := ok && current.conn == client.conn
	if removed {
		delete(h.clients, client.UserID)
	}
	h.mu.Unlock()

	if !removed {
		return
	}
	log.Printf("Client unregistered: %s", client.UserID)
	h.broadcastOnlineUsers()
}

// Lookup returns the user's live client; absent means offline.
func (h *Hub) Lookup(userID uuid.UUID) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[userID]
	return client, ok
}

// OnlineUsers returns a snapshot of every identified user id.
func (h *Hub) OnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) broadcastOnlineUsers() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	ev := OnlineUsersEvent{Type: EventOnlineUsers, UserIDs: ids}

	for userID, client := range h.clients {
		if err := client.WriteJSON(ev); err != nil {
			log.Printf("Error sending online users to client %s: %v", userID, err)
		}
	}
}
