package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO messages (id, room_id, sender_id, content, message_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		m.ID, m.RoomID, m.SenderID, m.Content, m.Kind, m.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	m := &domain.Message{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, room_id, sender_id, content, message_type, created_at
		FROM messages
		WHERE id = ?
	`, id).Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.Kind, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if err := r.loadReadBy(ctx, []*domain.Message{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// ListForRoom returns the window newest-first: skip offset from the newest
// end, take limit. Callers reverse for chronological order.
func (r *MessageRepo) ListForRoom(ctx context.Context, roomID string, limit, offset int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room_id, sender_id, content, message_type, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, roomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.Kind, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if err := r.loadReadBy(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, messageID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO message_reads (message_id, user_id)
		VALUES (?, ?)
	`, messageID, userID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MarkAllRead is one INSERT..SELECT so concurrent sends cannot lose receipts.
func (r *MessageRepo) MarkAllRead(ctx context.Context, roomID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO message_reads (message_id, user_id)
		SELECT id, ? FROM messages WHERE room_id = ?
	`, userID, roomID); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (r *MessageRepo) UnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages m
		WHERE m.room_id = ?
		  AND m.sender_id <> ?
		  AND NOT EXISTS (
			SELECT 1 FROM message_reads mr
			WHERE mr.message_id = m.id AND mr.user_id = ?
		  )
	`, roomID, userID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (r *MessageRepo) loadReadBy(ctx context.Context, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Message, len(msgs))
	args := make([]any, 0, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
		args = append(args, m.ID)
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(msgs)), ",")
	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, user_id FROM message_reads WHERE message_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("load read receipts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mid, uid string
		if err := rows.Scan(&mid, &uid); err != nil {
			return fmt.Errorf("scan read receipt: %w", err)
		}
		if m, ok := byID[mid]; ok {
			m.ReadBy = append(m.ReadBy, uid)
		}
	}
	return rows.Err()
}
