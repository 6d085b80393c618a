package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chatrelay/internal/domain"
	"chatrelay/internal/security"
	"chatrelay/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) Search(ctx context.Context, query, excludeID string, limit int) ([]*domain.User, error) {
	return nil, nil // Not used in auth tests
}

func (m *MockUserRepo) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	return nil, nil
}

func (m *MockUserRepo) ListOnline(ctx context.Context) ([]*domain.User, error) {
	return nil, nil
}

func (m *MockUserRepo) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func TestRegister(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher, 30*24*time.Hour)

		mockRepo.On("GetByUsername", mock.Anything, "newuser").Return(nil, nil)
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "newuser" && u.HashedPassword != "Password1!"
		})).Return(nil)

		user, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "newuser",
			Password: "Password1!",
		})
		assert.NoError(t, err)
		assert.NotNil(t, user)
		assert.Equal(t, "newuser", user.Username)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher, 30*24*time.Hour)

		mockRepo.On("GetByUsername", mock.Anything, "existing").Return(&domain.User{
			ID:       "u1",
			Username: "existing",
		}, nil)

		_, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "existing",
			Password: "Password1!",
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher, 30*24*time.Hour)

		email := "taken@example.com"
		mockRepo.On("GetByUsername", mock.Anything, "newuser").Return(nil, nil)
		mockRepo.On("GetByEmail", mock.Anything, email).Return(&domain.User{ID: "u2"}, nil)

		_, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "newuser",
			Email:    &email,
			Password: "Password1!",
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("MissingFields", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher, 30*24*time.Hour)

		_, err := svc.Register(context.Background(), service.RegisterInput{Username: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestLogin(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4)

	hashed, err := hasher.Hash("Password1!")
	assert.NoError(t, err)
	stored := &domain.User{ID: "u1", Username: "alice", HashedPassword: hashed}

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher, 30*24*time.Hour)

		mockRepo.On("GetByUsername", mock.Anything, "alice").Return(stored, nil)

		resp, err := svc.Login(context.Background(), service.LoginInput{
			Username: "alice",
			Password: "Password1!",
		})
		assert.NoError(t, err)
		assert.Equal(t, "bearer", resp.TokenType)
		assert.NotEmpty(t, resp.AccessToken)

		// The token round-trips to the user's id.
		userID, err := tokenSvc.Verify(context.Background(), resp.AccessToken)
		assert.NoError(t, err)
		assert.Equal(t, "u1", userID)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher, 30*24*time.Hour)

		mockRepo.On("GetByUsername", mock.Anything, "alice").Return(stored, nil)

		_, err := svc.Login(context.Background(), service.LoginInput{
			Username: "alice",
			Password: "wrong",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		svc := service.NewAuthService(mockRepo, tokenSvc, hasher, 30*24*time.Hour)

		mockRepo.On("GetByUsername", mock.Anything, "ghost").Return(nil, nil)

		_, err := svc.Login(context.Background(), service.LoginInput{
			Username: "ghost",
			Password: "whatever",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestTokenVerify(t *testing.T) {
	tokenSvc := security.NewTokenService("secret", time.Hour)

	t.Run("Garbage", func(t *testing.T) {
		_, err := tokenSvc.Verify(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := tokenSvc.CreateWithTTL("u1", -time.Minute)
		assert.NoError(t, err)
		_, err = tokenSvc.Verify(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrExpiredToken)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := security.NewTokenService("different", time.Hour)
		token, err := other.CreateForUser("u1")
		assert.NoError(t, err)
		_, err = tokenSvc.Verify(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})
}
