package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
)

type FriendRepo struct {
	db *sql.DB
}

func NewFriendRepo(db *sql.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

var _ domain.FriendRepository = (*FriendRepo)(nil)

func (r *FriendRepo) CreateRequest(ctx context.Context, fr *domain.FriendRequest) error {
	if fr.ID == "" {
		fr.ID = uuid.NewString()
	}
	if fr.Status == "" {
		fr.Status = domain.RequestPending
	}
	now := time.Now().UTC()
	fr.CreatedAt = now
	fr.UpdatedAt = now

	query := `
		INSERT INTO friend_requests (id, from_user_id, to_user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		fr.ID, fr.FromUserID, fr.ToUserID, fr.Status, fr.CreatedAt, fr.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert friend request: %w", err)
	}
	return nil
}

func (r *FriendRepo) GetRequestByID(ctx context.Context, id string) (*domain.FriendRequest, error) {
	return r.scanRequest(r.db.QueryRowContext(ctx, `
		SELECT id, from_user_id, to_user_id, status, created_at, updated_at
		FROM friend_requests
		WHERE id = $1
	`, id))
}

func (r *FriendRepo) FindPendingBetween(ctx context.Context, userA, userB string) (*domain.FriendRequest, error) {
	return r.scanRequest(r.db.QueryRowContext(ctx, `
		SELECT id, from_user_id, to_user_id, status, created_at, updated_at
		FROM friend_requests
		WHERE status = $1
		  AND ((from_user_id = $2 AND to_user_id = $3) OR (from_user_id = $3 AND to_user_id = $2))
		LIMIT 1
	`, domain.RequestPending, userA, userB))
}

func (r *FriendRepo) ListPendingTo(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	return r.listRequests(ctx, `
		SELECT id, from_user_id, to_user_id, status, created_at, updated_at
		FROM friend_requests
		WHERE to_user_id = $1 AND status = $2
		ORDER BY created_at DESC
	`, userID, domain.RequestPending)
}

func (r *FriendRepo) ListSentBy(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	return r.listRequests(ctx, `
		SELECT id, from_user_id, to_user_id, status, created_at, updated_at
		FROM friend_requests
		WHERE from_user_id = $1
		ORDER BY created_at DESC
	`, userID)
}

func (r *FriendRepo) UpdateRequestStatus(ctx context.Context, id, status string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE friend_requests SET status = $1, updated_at = $2 WHERE id = $3
	`, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return nil
}

func (r *FriendRepo) DeleteRequest(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM friend_requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}

// AcceptRequest flips the request to accepted and inserts the friendship in
// one transaction, so no reader observes one without the other.
func (r *FriendRepo) AcceptRequest(ctx context.Context, requestID string, f *domain.Friendship) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE friend_requests SET status = $1, updated_at = $2 WHERE id = $3
	`, domain.RequestAccepted, f.CreatedAt, requestID); err != nil {
		return fmt.Errorf("accept request: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO friendships (id, user1_id, user2_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, f.ID, f.UserA, f.UserB, f.CreatedAt); err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *FriendRepo) FindFriendship(ctx context.Context, userA, userB string) (*domain.Friendship, error) {
	u1, u2 := domain.OrderPair(userA, userB)
	f := &domain.Friendship{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user1_id, user2_id, created_at
		FROM friendships
		WHERE user1_id = $1 AND user2_id = $2
	`, u1, u2).Scan(&f.ID, &f.UserA, &f.UserB, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find friendship: %w", err)
	}
	return f, nil
}

func (r *FriendRepo) ListFriendships(ctx context.Context, userID string) ([]*domain.Friendship, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user1_id, user2_id, created_at
		FROM friendships
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	defer rows.Close()

	var res []*domain.Friendship
	for rows.Next() {
		f := &domain.Friendship{}
		if err := rows.Scan(&f.ID, &f.UserA, &f.UserB, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

func (r *FriendRepo) DeleteFriendship(ctx context.Context, userA, userB string) error {
	u1, u2 := domain.OrderPair(userA, userB)
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM friendships WHERE user1_id = $1 AND user2_id = $2
	`, u1, u2); err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}

func (r *FriendRepo) scanRequest(row *sql.Row) (*domain.FriendRequest, error) {
	fr := &domain.FriendRequest{}
	err := row.Scan(&fr.ID, &fr.FromUserID, &fr.ToUserID, &fr.Status, &fr.CreatedAt, &fr.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan friend request: %w", err)
	}
	return fr, nil
}

func (r *FriendRepo) listRequests(ctx context.Context, query string, args ...any) ([]*domain.FriendRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	defer rows.Close()

	var res []*domain.FriendRequest
	for rows.Next() {
		fr := &domain.FriendRequest{}
		if err := rows.Scan(&fr.ID, &fr.FromUserID, &fr.ToUserID, &fr.Status, &fr.CreatedAt, &fr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		res = append(res, fr)
	}
	return res, rows.Err()
}
