package domain

import "time"

// User status values. Status is owned by the presence registry: it is derived
// from the user's live connection count, not set by login/logout.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
)

// User represents an application user.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          *string   `json:"email,omitempty"`
	HashedPassword string    `json:"-"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	LastSeen       time.Time `json:"last_seen"`
}

// Room kinds. A private room always has exactly two members and at most one
// private room exists per unordered pair of users.
const (
	RoomPrivate = "private"
	RoomGroup   = "group"
)

// LastMessage is the denormalized preview cached on a room.
type LastMessage struct {
	Content    string    `json:"content"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Room represents a messaging context with a member set.
type Room struct {
	ID          string       `json:"id"`
	Name        *string      `json:"name"`
	Kind        string       `json:"room_type"`
	MemberIDs   []string     `json:"members"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	LastMessage *LastMessage `json:"last_message"`
}

// Message kinds.
const (
	MessageText  = "text"
	MessageImage = "image"
	MessageFile  = "file"
)

// Message is one entry in a room's append-only log. ReadBy only ever grows.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	RoomID    string    `json:"room_id"`
	Content   string    `json:"content"`
	Kind      string    `json:"message_type"`
	CreatedAt time.Time `json:"created_at"`
	ReadBy    []string  `json:"read_by"`
}

// Friend request status values.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// FriendRequest is a pending, accepted, or declined request between two
// users. At most one pending request exists per unordered pair.
type FriendRequest struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Friendship stores its pair in canonical order (UserA < UserB, see
// OrderPair) so lookup and deletion need no directional branching.
type Friendship struct {
	ID        string    `json:"id"`
	UserA     string    `json:"user1_id"`
	UserB     string    `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
}
