package ws

import (
	"log"
	"sync"
)

// Hub tracks live connections, which user owns each one, and which rooms
// each connection has joined. A user may hold several connections at once;
// presence is per user, not per connection.
type Hub struct {
	mu     sync.RWMutex
	users  map[*Conn]string
	byUser map[string]map[*Conn]struct{}
	rooms  map[string]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		users:  make(map[*Conn]string),
		byUser: make(map[string]map[*Conn]struct{}),
		rooms:  make(map[string]map[*Conn]struct{}),
	}
}

// Register binds a connection to a user. Returns true when this is the
// user's first live connection, i.e. the user just came online.
func (h *Hub) Register(c *Conn, userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.users[c] = userID
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[*Conn]struct{})
	}
	first := len(h.byUser[userID]) == 0
	h.byUser[userID][c] = struct{}{}
	return first
}

// Unregister removes exactly this connection and its room subscriptions.
// Returns the owning user id and whether it was the user's last connection.
// Other connections of the same user stay registered.
func (h *Hub) Unregister(c *Conn) (userID string, last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, conns := range h.rooms {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}

	userID, ok := h.users[c]
	if !ok {
		return "", false
	}
	delete(h.users, c)
	if conns := h.byUser[userID]; conns != nil {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.byUser, userID)
			return userID, true
		}
	}
	return userID, false
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

func (h *Hub) JoinRoom(roomID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Conn]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
}

func (h *Hub) LeaveRoom(roomID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Send delivers one event to one connection.
func (h *Hub) Send(c *Conn, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("ws: encode %s: %v", event, err)
		return
	}
	c.enqueue(payload)
}

// SendToUser delivers the event to every connection of the user.
func (h *Hub) SendToUser(userID, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("ws: encode %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		c.enqueue(payload)
	}
}

// Broadcast delivers the event to every connection joined to the room,
// optionally excluding one connection (typically the originator).
func (h *Hub) Broadcast(roomID, event string, data any, exclude *Conn) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("ws: encode %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		if c == exclude {
			continue
		}
		c.enqueue(payload)
	}
}

// BroadcastAll delivers the event to every registered connection.
func (h *Hub) BroadcastAll(event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("ws: encode %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users {
		c.enqueue(payload)
	}
}
