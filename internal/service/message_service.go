package service

import (
	"context"
	"fmt"
	"log"

	"chatrelay/internal/domain"
)

// MessageService handles the message log: sending, paging, read receipts.
type MessageService struct {
	messages domain.MessageRepository
	rooms    domain.RoomRepository
	users    domain.UserRepository

	PreviewLength int
	PageSize      int
}

func NewMessageService(messages domain.MessageRepository, rooms domain.RoomRepository, users domain.UserRepository, previewLength, pageSize int) *MessageService {
	return &MessageService{
		messages:      messages,
		rooms:         rooms,
		users:         users,
		PreviewLength: previewLength,
		PageSize:      pageSize,
	}
}

type SendInput struct {
	RoomID  string
	Content string
	Kind    string
}

// Send appends a message to the room log and refreshes the room's preview.
// Membership is checked at call time, so a user removed from the room loses
// write access immediately.
func (s *MessageService) Send(ctx context.Context, in SendInput, senderID string) (*domain.Message, error) {
	if in.Content == "" {
		return nil, fmt.Errorf("%w: message content cannot be empty", domain.ErrInvalidInput)
	}
	kind := in.Kind
	if kind == "" {
		kind = domain.MessageText
	}
	switch kind {
	case domain.MessageText, domain.MessageImage, domain.MessageFile:
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", domain.ErrInvalidInput, kind)
	}

	if err := s.requireMember(ctx, in.RoomID, senderID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		RoomID:   in.RoomID,
		SenderID: senderID,
		Content:  in.Content,
		Kind:     kind,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	// Preview maintenance is best effort; the message itself is committed.
	if err := s.updatePreview(ctx, msg); err != nil {
		log.Printf("message: update preview for room %s: %v", in.RoomID, err)
	}
	return msg, nil
}

func (s *MessageService) updatePreview(ctx context.Context, msg *domain.Message) error {
	senderName := "Unknown"
	if u, err := s.users.GetByID(ctx, msg.SenderID); err != nil {
		return fmt.Errorf("get sender: %w", err)
	} else if u != nil {
		senderName = u.Username
	}

	content := msg.Content
	if runes := []rune(content); len(runes) > s.PreviewLength {
		content = string(runes[:s.PreviewLength])
	}
	return s.rooms.UpdateLastMessage(ctx, msg.RoomID, &domain.LastMessage{
		Content:    content,
		SenderName: senderName,
		CreatedAt:  msg.CreatedAt,
	})
}

// Page returns a window of the room log in chronological order. Offset
// counts back from the newest message.
func (s *MessageService) Page(ctx context.Context, roomID, callerID string, limit, offset int) ([]*domain.Message, error) {
	if err := s.requireMember(ctx, roomID, callerID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.PageSize {
		limit = s.PageSize
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := s.messages.ListForRoom(ctx, roomID, limit, offset)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order (repo returns DESC)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkRead records a read receipt for one message. Idempotent.
func (s *MessageService) MarkRead(ctx context.Context, messageID, callerID string) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("%w: message not found", domain.ErrNotFound)
	}
	if err := s.requireMember(ctx, msg.RoomID, callerID); err != nil {
		return err
	}
	return s.messages.MarkRead(ctx, messageID, callerID)
}

// MarkAllRead records read receipts for every message in the room.
func (s *MessageService) MarkAllRead(ctx context.Context, roomID, callerID string) error {
	if err := s.requireMember(ctx, roomID, callerID); err != nil {
		return err
	}
	return s.messages.MarkAllRead(ctx, roomID, callerID)
}

func (s *MessageService) UnreadCount(ctx context.Context, roomID, callerID string) (int, error) {
	if err := s.requireMember(ctx, roomID, callerID); err != nil {
		return 0, err
	}
	return s.messages.UnreadCount(ctx, roomID, callerID)
}

func (s *MessageService) requireMember(ctx context.Context, roomID, userID string) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return fmt.Errorf("%w: room not found", domain.ErrNotFound)
	}
	ok, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("check member: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: not a member of this room", domain.ErrForbidden)
	}
	return nil
}

// MessageView mirrors the payload the client renders: the message plus the
// sender's username.
type MessageView struct {
	*domain.Message
	SenderUsername string `json:"sender_username"`
}

func (s *MessageService) ToView(ctx context.Context, m *domain.Message) *MessageView {
	view := &MessageView{Message: m}
	if u, err := s.users.GetByID(ctx, m.SenderID); err == nil && u != nil {
		view.SenderUsername = u.Username
	}
	return view
}

func (s *MessageService) ToViews(ctx context.Context, msgs []*domain.Message) []*MessageView {
	res := make([]*MessageView, len(msgs))
	for i, m := range msgs {
		res[i] = s.ToView(ctx, m)
	}
	return res
}
