package service

import (
	"context"
	"fmt"

	"chatrelay/internal/domain"
)

// UserService provides user lookup and directory operations.
type UserService struct {
	users domain.UserRepository
}

func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found", domain.ErrNotFound)
	}
	return user, nil
}

// Search matches usernames and emails; the caller is never in the results.
func (s *UserService) Search(ctx context.Context, query, callerID string, limit int) ([]*domain.User, error) {
	if len([]rune(query)) < 2 {
		return nil, fmt.Errorf("%w: search query must be at least 2 characters", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}
	return s.users.Search(ctx, query, callerID, limit)
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, offset, limit)
}

func (s *UserService) ListOnline(ctx context.Context) ([]*domain.User, error) {
	return s.users.ListOnline(ctx)
}
