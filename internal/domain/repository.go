package domain

import (
	"context"
)

// Repositories return (nil, nil) when an entity does not exist; absence is
// never an error at this layer.

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Search(ctx context.Context, query, excludeID string, limit int) ([]*User, error)
	// List pages through all users ordered by username.
	List(ctx context.Context, offset, limit int) ([]*User, error)
	ListOnline(ctx context.Context) ([]*User, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// RoomRepository defines persistence operations for rooms and their member sets.
type RoomRepository interface {
	Create(ctx context.Context, r *Room) error
	GetByID(ctx context.Context, id string) (*Room, error)
	// FindPrivateRoom expects the pair in canonical order (OrderPair).
	FindPrivateRoom(ctx context.Context, userA, userB string) (*Room, error)
	// ListForUser orders by last-message timestamp descending, rooms without
	// messages last.
	ListForUser(ctx context.Context, userID string) ([]*Room, error)
	AddMember(ctx context.Context, roomID, userID string) error
	RemoveMember(ctx context.Context, roomID, userID string) error
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	UpdateLastMessage(ctx context.Context, roomID string, preview *LastMessage) error
}

// MessageRepository defines persistence operations for the per-room message log.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	// ListForRoom returns the window newest-first; callers reverse for
	// chronological order.
	ListForRoom(ctx context.Context, roomID string, limit, offset int) ([]*Message, error)
	MarkRead(ctx context.Context, messageID, userID string) error
	// MarkAllRead must be a single set-update pass, not one write per message.
	MarkAllRead(ctx context.Context, roomID, userID string) error
	// UnreadCount excludes messages authored by userID.
	UnreadCount(ctx context.Context, roomID, userID string) (int, error)
}

// FriendRepository defines persistence for friend requests and friendships.
// Friendship pairs are stored in canonical order (OrderPair).
type FriendRepository interface {
	CreateRequest(ctx context.Context, fr *FriendRequest) error
	GetRequestByID(ctx context.Context, id string) (*FriendRequest, error)
	// FindPendingBetween checks both directions.
	FindPendingBetween(ctx context.Context, userA, userB string) (*FriendRequest, error)
	ListPendingTo(ctx context.Context, userID string) ([]*FriendRequest, error)
	ListSentBy(ctx context.Context, userID string) ([]*FriendRequest, error)
	UpdateRequestStatus(ctx context.Context, id, status string) error
	DeleteRequest(ctx context.Context, id string) error
	// AcceptRequest marks the request accepted and creates the friendship in
	// one transaction; no reader may observe one without the other.
	AcceptRequest(ctx context.Context, requestID string, f *Friendship) error
	FindFriendship(ctx context.Context, userA, userB string) (*Friendship, error)
	ListFriendships(ctx context.Context, userID string) ([]*Friendship, error)
	DeleteFriendship(ctx context.Context, userA, userB string) error
}
