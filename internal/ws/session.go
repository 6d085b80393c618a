package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"chatrelay/internal/domain"
	"chatrelay/internal/service"
)

const authTimeout = 5 * time.Second

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Session is the per-connection protocol state machine. The first event on
// a connection must be authenticate; everything else is rejected until then.
type Session struct {
	hub      *Hub
	conn     *Conn
	verifier TokenVerifier
	users    domain.UserRepository
	rooms    *service.RoomService
	messages *service.MessageService

	userID   string
	username string
	joined   map[string]struct{}
}

func NewSession(hub *Hub, conn *Conn, verifier TokenVerifier, users domain.UserRepository, rooms *service.RoomService, messages *service.MessageService) *Session {
	return &Session{
		hub:      hub,
		conn:     conn,
		verifier: verifier,
		users:    users,
		rooms:    rooms,
		messages: messages,
		joined:   make(map[string]struct{}),
	}
}

var handlers = map[string]func(*Session, context.Context, json.RawMessage) error{
	EventAuthenticate: (*Session).handleAuthenticate,
	EventJoinRoom:     (*Session).handleJoinRoom,
	EventLeaveRoom:    (*Session).handleLeaveRoom,
	EventSendMessage:  (*Session).handleSendMessage,
	EventTyping:       (*Session).handleTyping,
	EventMarkRead:     (*Session).handleMarkRead,
}

// Handle dispatches one inbound frame.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.sendError("malformed event")
		return
	}

	handler, ok := handlers[env.Event]
	if !ok {
		log.Printf("ws: unknown event %q", env.Event)
		s.sendError("unknown event: " + env.Event)
		return
	}
	if s.userID == "" && env.Event != EventAuthenticate {
		s.sendError("not authenticated")
		return
	}

	if err := handler(s, ctx, env.Data); err != nil {
		var sent bool
		for _, sentinel := range []error{
			domain.ErrNotFound, domain.ErrForbidden, domain.ErrConflict,
			domain.ErrInvalidInput, domain.ErrInvalidToken, domain.ErrExpiredToken,
		} {
			if errors.Is(err, sentinel) {
				s.sendError(err.Error())
				sent = true
				break
			}
		}
		if !sent {
			log.Printf("ws: %s: %v", env.Event, err)
			s.sendError("internal error")
		}
	}
}

func (s *Session) handleAuthenticate(ctx context.Context, data json.RawMessage) error {
	var p authenticatePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Token == "" {
		return domain.ErrInvalidToken
	}
	if s.userID != "" {
		return nil // already authenticated, ignore
	}

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	userID, err := s.verifier.Verify(ctx, p.Token)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrInvalidToken
	}
	s.userID = user.ID
	s.username = user.Username

	first := s.hub.Register(s.conn, user.ID)
	if first {
		if err := s.users.UpdateStatus(ctx, user.ID, domain.StatusOnline); err != nil {
			log.Printf("ws: set online for %s: %v", user.ID, err)
		}
	}

	roomIDs, err := s.rooms.RoomIDsForUser(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, roomID := range roomIDs {
		s.hub.JoinRoom(roomID, s.conn)
		s.joined[roomID] = struct{}{}
	}

	s.hub.Send(s.conn, EventAuthenticated, authenticatedPayload{
		UserID:  user.ID,
		RoomIDs: roomIDs,
	})
	if first {
		s.hub.BroadcastAll(EventUserStatus, userStatusPayload{
			UserID:   user.ID,
			Username: user.Username,
			Status:   domain.StatusOnline,
		})
	}
	return nil
}

func (s *Session) handleJoinRoom(ctx context.Context, data json.RawMessage) error {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return domain.ErrInvalidInput
	}

	ok, err := s.rooms.IsMember(ctx, p.RoomID, s.userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden
	}

	s.hub.JoinRoom(p.RoomID, s.conn)
	s.joined[p.RoomID] = struct{}{}

	s.hub.Send(s.conn, EventJoinedRoom, roomPayload{RoomID: p.RoomID})
	s.hub.Broadcast(p.RoomID, EventUserJoined, roomUserPayload{
		RoomID:   p.RoomID,
		UserID:   s.userID,
		Username: s.username,
	}, s.conn)
	return nil
}

func (s *Session) handleLeaveRoom(ctx context.Context, data json.RawMessage) error {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return domain.ErrInvalidInput
	}
	if _, ok := s.joined[p.RoomID]; !ok {
		return nil
	}

	s.hub.LeaveRoom(p.RoomID, s.conn)
	delete(s.joined, p.RoomID)

	s.hub.Send(s.conn, EventLeftRoom, roomPayload{RoomID: p.RoomID})
	s.hub.Broadcast(p.RoomID, EventUserLeft, roomUserPayload{
		RoomID:   p.RoomID,
		UserID:   s.userID,
		Username: s.username,
	}, s.conn)
	return nil
}

func (s *Session) handleSendMessage(ctx context.Context, data json.RawMessage) error {
	var p sendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return domain.ErrInvalidInput
	}
	if _, ok := s.joined[p.RoomID]; !ok {
		return domain.ErrForbidden
	}

	msg, err := s.messages.Send(ctx, service.SendInput{
		RoomID:  p.RoomID,
		Content: p.Content,
		Kind:    p.Kind,
	}, s.userID)
	if err != nil {
		return err
	}
	view := s.messages.ToView(ctx, msg)

	// Everyone in the room, sender included, sees the message; members not
	// currently in the room get a notification on all their connections.
	s.hub.Broadcast(p.RoomID, EventNewMessage, view, nil)

	memberIDs, err := s.rooms.MemberIDs(ctx, p.RoomID)
	if err != nil {
		return err
	}
	notif := notificationPayload{
		Type:    EventNewMessage,
		RoomID:  msg.RoomID,
		Message: view,
	}
	for _, uid := range memberIDs {
		if uid == s.userID {
			continue
		}
		s.hub.SendToUser(uid, EventNotification, notif)
	}
	return nil
}

func (s *Session) handleTyping(ctx context.Context, data json.RawMessage) error {
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return domain.ErrInvalidInput
	}
	if _, ok := s.joined[p.RoomID]; !ok {
		return domain.ErrForbidden
	}

	isTyping := true
	if p.IsTyping != nil {
		isTyping = *p.IsTyping
	}
	s.hub.Broadcast(p.RoomID, EventUserTyping, userTypingPayload{
		RoomID:   p.RoomID,
		UserID:   s.userID,
		Username: s.username,
		IsTyping: isTyping,
	}, s.conn)
	return nil
}

func (s *Session) handleMarkRead(ctx context.Context, data json.RawMessage) error {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		return domain.ErrInvalidInput
	}

	if err := s.messages.MarkAllRead(ctx, p.RoomID, s.userID); err != nil {
		return err
	}
	s.hub.Broadcast(p.RoomID, EventMessagesRead, messagesReadPayload{
		RoomID: p.RoomID,
		UserID: s.userID,
	}, nil)
	return nil
}

// Close tears the session down after the read loop ends. The user goes
// offline only when this was their last connection.
func (s *Session) Close(ctx context.Context) {
	userID, last := s.hub.Unregister(s.conn)
	s.conn.shutdown()
	if userID == "" || !last {
		return
	}

	if err := s.users.UpdateStatus(ctx, userID, domain.StatusOffline); err != nil {
		log.Printf("ws: set offline for %s: %v", userID, err)
	}
	s.hub.BroadcastAll(EventUserStatus, userStatusPayload{
		UserID:   userID,
		Username: s.username,
		Status:   domain.StatusOffline,
	})
}

func (s *Session) sendError(msg string) {
	s.hub.Send(s.conn, EventError, errorPayload{Message: msg})
}
