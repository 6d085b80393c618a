package service

import (
	"context"
	"fmt"

	"chatrelay/internal/domain"
)

// FriendChecker answers whether two users are friends. Satisfied by
// FriendService; rooms only need this one question.
type FriendChecker interface {
	AreFriends(ctx context.Context, userA, userB string) (bool, error)
}

// RoomService manages the room directory and membership.
type RoomService struct {
	rooms    domain.RoomRepository
	messages domain.MessageRepository
	users    domain.UserRepository
	friends  FriendChecker
}

func NewRoomService(rooms domain.RoomRepository, messages domain.MessageRepository, users domain.UserRepository, friends FriendChecker) *RoomService {
	return &RoomService{
		rooms:    rooms,
		messages: messages,
		users:    users,
		friends:  friends,
	}
}

type RoomCreateInput struct {
	Name      *string
	Kind      string
	MemberIDs []string
}

// CreateRoom creates a room with the caller plus the given members. Every
// member must be a friend of the caller. Creating a private room with a
// member you already share one with returns the existing room instead.
func (s *RoomService) CreateRoom(ctx context.Context, in RoomCreateInput, creatorID string) (*domain.Room, error) {
	if in.Kind != domain.RoomPrivate && in.Kind != domain.RoomGroup {
		return nil, fmt.Errorf("%w: room_type must be private or group", domain.ErrInvalidInput)
	}
	if in.Kind == domain.RoomGroup && (in.Name == nil || *in.Name == "") {
		return nil, fmt.Errorf("%w: group rooms require a name", domain.ErrInvalidInput)
	}

	members := dedupeWithCreator(creatorID, in.MemberIDs)
	if len(members) < 2 {
		return nil, fmt.Errorf("%w: at least one other member is required", domain.ErrInvalidInput)
	}
	if in.Kind == domain.RoomPrivate && len(members) != 2 {
		return nil, fmt.Errorf("%w: private rooms have exactly two members", domain.ErrInvalidInput)
	}

	for _, id := range members {
		if id == creatorID {
			continue
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get member: %w", err)
		}
		if u == nil {
			return nil, fmt.Errorf("%w: user not found", domain.ErrNotFound)
		}
		ok, err := s.friends.AreFriends(ctx, creatorID, id)
		if err != nil {
			return nil, fmt.Errorf("check friendship: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s is not your friend", domain.ErrForbidden, u.Username)
		}
	}

	if in.Kind == domain.RoomPrivate {
		existing, err := s.rooms.FindPrivateRoom(ctx, members[0], members[1])
		if err != nil {
			return nil, fmt.Errorf("find private room: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	room := &domain.Room{
		Name:      in.Name,
		Kind:      in.Kind,
		MemberIDs: members,
		CreatedBy: creatorID,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func dedupeWithCreator(creatorID string, memberIDs []string) []string {
	seen := map[string]struct{}{creatorID: {}}
	members := []string{creatorID}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	return members
}

// GetRoom returns the room if the caller is a member.
func (s *RoomService) GetRoom(ctx context.Context, roomID, callerID string) (*domain.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return nil, fmt.Errorf("%w: room not found", domain.ErrNotFound)
	}
	ok, err := s.rooms.IsMember(ctx, roomID, callerID)
	if err != nil {
		return nil, fmt.Errorf("check member: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: not a member of this room", domain.ErrForbidden)
	}
	return room, nil
}

// RoomView is a room entry joined with the caller's unread count.
type RoomView struct {
	*domain.Room
	UnreadCount int `json:"unread_count"`
}

// ListForUser returns the caller's rooms, most recently active first.
func (s *RoomService) ListForUser(ctx context.Context, userID string) ([]*RoomView, error) {
	rooms, err := s.rooms.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	res := make([]*RoomView, 0, len(rooms))
	for _, room := range rooms {
		unread, err := s.messages.UnreadCount(ctx, room.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
		res = append(res, &RoomView{Room: room, UnreadCount: unread})
	}
	return res, nil
}

// RoomIDsForUser returns just the ids of the caller's rooms, used by the
// realtime session to auto-join on connect.
func (s *RoomService) RoomIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rooms, err := s.rooms.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	return ids, nil
}

// AddMember adds a friend of the caller to a group room. Private room
// membership is fixed at creation.
func (s *RoomService) AddMember(ctx context.Context, roomID, callerID, userID string) error {
	room, err := s.GetRoom(ctx, roomID, callerID)
	if err != nil {
		return err
	}
	if room.Kind != domain.RoomGroup {
		return fmt.Errorf("%w: members can only be added to group rooms", domain.ErrInvalidInput)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return fmt.Errorf("%w: user not found", domain.ErrNotFound)
	}
	ok, err := s.friends.AreFriends(ctx, callerID, userID)
	if err != nil {
		return fmt.Errorf("check friendship: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is not your friend", domain.ErrForbidden, u.Username)
	}
	return s.rooms.AddMember(ctx, roomID, userID)
}

// Leave removes the caller from the room. The room itself stays, even if
// it ends up empty.
func (s *RoomService) Leave(ctx context.Context, roomID, callerID string) error {
	if _, err := s.GetRoom(ctx, roomID, callerID); err != nil {
		return err
	}
	return s.rooms.RemoveMember(ctx, roomID, callerID)
}

// IsMember reports whether the user belongs to the room.
func (s *RoomService) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	return s.rooms.IsMember(ctx, roomID, userID)
}

// MemberIDs returns all member ids of a room, for realtime fan-out.
func (s *RoomService) MemberIDs(ctx context.Context, roomID string) ([]string, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return nil, fmt.Errorf("%w: room not found", domain.ErrNotFound)
	}
	return room.MemberIDs, nil
}
