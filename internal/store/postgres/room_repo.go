package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
)

type RoomRepo struct {
	db *sql.DB
}

func NewRoomRepo(db *sql.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

var _ domain.RoomRepository = (*RoomRepo)(nil)

func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	room.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (id, name, room_type, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, room.ID, room.Name, room.Kind, room.CreatedBy, room.CreatedAt); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}

	for _, uid := range room.MemberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO room_members (room_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, room.ID, uid); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *RoomRepo) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	room, err := r.scanRoom(r.db.QueryRowContext(ctx, `
		SELECT id, name, room_type, created_by, created_at,
		       last_message_content, last_message_sender, last_message_at
		FROM rooms
		WHERE id = $1
	`, id))
	if err != nil || room == nil {
		return room, err
	}
	if err := r.loadMembers(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (r *RoomRepo) FindPrivateRoom(ctx context.Context, userA, userB string) (*domain.Room, error) {
	room, err := r.scanRoom(r.db.QueryRowContext(ctx, `
		SELECT r.id, r.name, r.room_type, r.created_by, r.created_at,
		       r.last_message_content, r.last_message_sender, r.last_message_at
		FROM rooms r
		JOIN room_members m1 ON m1.room_id = r.id AND m1.user_id = $1
		JOIN room_members m2 ON m2.room_id = r.id AND m2.user_id = $2
		WHERE r.room_type = $3
		  AND (SELECT COUNT(*) FROM room_members m WHERE m.room_id = r.id) = 2
		LIMIT 1
	`, userA, userB, domain.RoomPrivate))
	if err != nil || room == nil {
		return room, err
	}
	if err := r.loadMembers(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (r *RoomRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Room, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.room_type, r.created_by, r.created_at,
		       r.last_message_content, r.last_message_sender, r.last_message_at
		FROM rooms r
		JOIN room_members rm ON rm.room_id = r.id
		WHERE rm.user_id = $1
		ORDER BY r.last_message_at DESC NULLS LAST
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var res []*domain.Room
	for rows.Next() {
		room, err := r.scanRoom(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	for _, room := range res {
		if err := r.loadMembers(ctx, room); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *RoomRepo) AddMember(ctx context.Context, roomID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO room_members (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roomID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *RoomRepo) RemoveMember(ctx context.Context, roomID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM room_members WHERE room_id = $1 AND user_id = $2
	`, roomID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (r *RoomRepo) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2
	`, roomID, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return true, nil
}

func (r *RoomRepo) UpdateLastMessage(ctx context.Context, roomID string, preview *domain.LastMessage) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE rooms
		SET last_message_content = $1, last_message_sender = $2, last_message_at = $3
		WHERE id = $4
	`, preview.Content, preview.SenderName, preview.CreatedAt, roomID); err != nil {
		return fmt.Errorf("update last message: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RoomRepo) scanRoom(row rowScanner) (*domain.Room, error) {
	room := &domain.Room{}
	var content, sender sql.NullString
	var at sql.NullTime
	err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Kind,
		&room.CreatedBy,
		&room.CreatedAt,
		&content,
		&sender,
		&at,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	if at.Valid {
		room.LastMessage = &domain.LastMessage{
			Content:    content.String,
			SenderName: sender.String,
			CreatedAt:  at.Time,
		}
	}
	return room, nil
}

func (r *RoomRepo) loadMembers(ctx context.Context, room *domain.Room) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM room_members WHERE room_id = $1 ORDER BY user_id ASC
	`, room.ID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()

	room.MemberIDs = room.MemberIDs[:0]
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return fmt.Errorf("scan member: %w", err)
		}
		room.MemberIDs = append(room.MemberIDs, uid)
	}
	return rows.Err()
}
