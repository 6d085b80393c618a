package service

import (
	"context"
	"fmt"
	"time"

	"chatrelay/internal/domain"
)

// FriendService manages friend requests and the friendship graph.
type FriendService struct {
	friends domain.FriendRepository
	users   domain.UserRepository
}

func NewFriendService(friends domain.FriendRepository, users domain.UserRepository) *FriendService {
	return &FriendService{
		friends: friends,
		users:   users,
	}
}

// SendRequest creates a pending request from caller to the named user.
func (s *FriendService) SendRequest(ctx context.Context, callerID, toUserID string) (*domain.FriendRequest, error) {
	if toUserID == "" {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrInvalidInput)
	}
	if callerID == toUserID {
		return nil, fmt.Errorf("%w: cannot send a friend request to yourself", domain.ErrInvalidInput)
	}

	target, err := s.users.GetByID(ctx, toUserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: user not found", domain.ErrNotFound)
	}

	if f, err := s.friends.FindFriendship(ctx, callerID, toUserID); err != nil {
		return nil, fmt.Errorf("check friendship: %w", err)
	} else if f != nil {
		return nil, fmt.Errorf("%w: already friends", domain.ErrConflict)
	}

	// A pending request in either direction blocks a new one.
	if fr, err := s.friends.FindPendingBetween(ctx, callerID, toUserID); err != nil {
		return nil, fmt.Errorf("check pending request: %w", err)
	} else if fr != nil {
		return nil, fmt.Errorf("%w: friend request already pending", domain.ErrConflict)
	}

	req := &domain.FriendRequest{
		FromUserID: callerID,
		ToUserID:   toUserID,
		Status:     domain.RequestPending,
	}
	if err := s.friends.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// AcceptRequest accepts a pending request addressed to the caller and
// records the friendship. Both writes happen in one repository call so a
// crash cannot leave an accepted request without a friendship row.
func (s *FriendService) AcceptRequest(ctx context.Context, callerID, requestID string) (*domain.Friendship, error) {
	req, err := s.getPendingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToUserID != callerID {
		return nil, fmt.Errorf("%w: request is not addressed to you", domain.ErrForbidden)
	}

	u1, u2 := domain.OrderPair(req.FromUserID, req.ToUserID)
	f := &domain.Friendship{UserA: u1, UserB: u2}
	if err := s.friends.AcceptRequest(ctx, req.ID, f); err != nil {
		return nil, fmt.Errorf("accept request: %w", err)
	}
	return f, nil
}

// DeclineRequest marks a pending request addressed to the caller declined.
func (s *FriendService) DeclineRequest(ctx context.Context, callerID, requestID string) error {
	req, err := s.getPendingRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ToUserID != callerID {
		return fmt.Errorf("%w: request is not addressed to you", domain.ErrForbidden)
	}
	return s.friends.UpdateRequestStatus(ctx, req.ID, domain.RequestDeclined)
}

// CancelRequest deletes a pending request the caller sent.
func (s *FriendService) CancelRequest(ctx context.Context, callerID, requestID string) error {
	req, err := s.getPendingRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.FromUserID != callerID {
		return fmt.Errorf("%w: request was not sent by you", domain.ErrForbidden)
	}
	return s.friends.DeleteRequest(ctx, req.ID)
}

func (s *FriendService) getPendingRequest(ctx context.Context, requestID string) (*domain.FriendRequest, error) {
	req, err := s.friends.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: friend request not found", domain.ErrNotFound)
	}
	if req.Status != domain.RequestPending {
		return nil, fmt.Errorf("%w: friend request is not pending", domain.ErrInvalidInput)
	}
	return req, nil
}

// AreFriends reports whether a friendship exists between the two users.
func (s *FriendService) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	f, err := s.friends.FindFriendship(ctx, userA, userB)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return f != nil, nil
}

func (s *FriendService) RemoveFriend(ctx context.Context, callerID, friendID string) error {
	f, err := s.friends.FindFriendship(ctx, callerID, friendID)
	if err != nil {
		return fmt.Errorf("check friendship: %w", err)
	}
	if f == nil {
		return fmt.Errorf("%w: friendship not found", domain.ErrNotFound)
	}
	return s.friends.DeleteFriendship(ctx, callerID, friendID)
}

// Friend is a friendship entry joined with the other party's profile.
type Friend struct {
	User  *domain.User `json:"user"`
	Since time.Time    `json:"friends_since"`
}

func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]*Friend, error) {
	friendships, err := s.friends.ListFriendships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}

	res := make([]*Friend, 0, len(friendships))
	for _, f := range friendships {
		otherID := f.UserA
		if otherID == userID {
			otherID = f.UserB
		}
		u, err := s.users.GetByID(ctx, otherID)
		if err != nil {
			return nil, fmt.Errorf("get friend: %w", err)
		}
		if u == nil {
			continue
		}
		res = append(res, &Friend{User: u, Since: f.CreatedAt})
	}
	return res, nil
}

// RequestView is a friend request joined with the counterparty's username.
type RequestView struct {
	Request  *domain.FriendRequest `json:"request"`
	Username string                `json:"username"`
}

// ListIncoming returns pending requests addressed to the user, newest first.
func (s *FriendService) ListIncoming(ctx context.Context, userID string) ([]*RequestView, error) {
	reqs, err := s.friends.ListPendingTo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	return s.enrichRequests(ctx, reqs, func(fr *domain.FriendRequest) string { return fr.FromUserID })
}

// ListOutgoing returns requests the user sent, newest first.
func (s *FriendService) ListOutgoing(ctx context.Context, userID string) ([]*RequestView, error) {
	reqs, err := s.friends.ListSentBy(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list outgoing requests: %w", err)
	}
	return s.enrichRequests(ctx, reqs, func(fr *domain.FriendRequest) string { return fr.ToUserID })
}

// Relationship values reported by SearchWithStatus.
const (
	RelationNone     = "none"
	RelationFriend   = "friend"
	RelationSent     = "request_sent"
	RelationReceived = "request_received"
)

// SearchResult is a directory hit annotated with the caller's relationship
// to that user.
type SearchResult struct {
	User         *domain.User `json:"user"`
	Relationship string       `json:"relationship"`
}

// SearchWithStatus wraps a user search with the caller's friend-graph state
// for each hit, so the client can render the right action button.
func (s *FriendService) SearchWithStatus(ctx context.Context, query, callerID string, limit int) ([]*SearchResult, error) {
	if len([]rune(query)) < 2 {
		return nil, fmt.Errorf("%w: search query must be at least 2 characters", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}
	hits, err := s.users.Search(ctx, query, callerID, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	res := make([]*SearchResult, 0, len(hits))
	for _, u := range hits {
		rel := RelationNone
		if f, err := s.friends.FindFriendship(ctx, callerID, u.ID); err != nil {
			return nil, fmt.Errorf("check friendship: %w", err)
		} else if f != nil {
			rel = RelationFriend
		} else if fr, err := s.friends.FindPendingBetween(ctx, callerID, u.ID); err != nil {
			return nil, fmt.Errorf("check pending request: %w", err)
		} else if fr != nil {
			if fr.FromUserID == callerID {
				rel = RelationSent
			} else {
				rel = RelationReceived
			}
		}
		res = append(res, &SearchResult{User: u, Relationship: rel})
	}
	return res, nil
}

func (s *FriendService) enrichRequests(ctx context.Context, reqs []*domain.FriendRequest, other func(*domain.FriendRequest) string) ([]*RequestView, error) {
	res := make([]*RequestView, 0, len(reqs))
	for _, fr := range reqs {
		view := &RequestView{Request: fr}
		if u, err := s.users.GetByID(ctx, other(fr)); err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		} else if u != nil {
			view.Username = u.Username
		}
		res = append(res, view)
	}
	return res, nil
}
