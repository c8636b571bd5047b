package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"xray_backend/internal/feature/auth/domain"
	"xray_backend/internal/feature/auth/domain/entity"
)

// mockUserRepository はUserRepositoryのモックです。
type mockUserRepository struct {
	CreateFunc         func(user *entity.User) error
	FindByEmailFunc    func(email string) (*entity.User, error)
	FindByIDFunc       func(id uint) (*entity.User, error)
	TouchLastLoginFunc func(id uint, at time.Time) error
}

func (m *mockUserRepository) Create(_ context.Context, user *entity.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(user)
	}
	return nil
}

func (m *mockUserRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(email)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) FindByID(_ context.Context, id uint) (*entity.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) TouchLastLogin(_ context.Context, id uint, at time.Time) error {
	if m.TouchLastLoginFunc != nil {
		return m.TouchLastLoginFunc(id, at)
	}
	return nil
}

// mockTokenGenerator はTokenGeneratorのモックです。
type mockTokenGenerator struct {
	GenerateTokenFunc func(userID uint, email string) (string, error)
}

func (m *mockTokenGenerator) GenerateToken(userID uint, email string) (string, error) {
	if m.GenerateTokenFunc != nil {
		return m.GenerateTokenFunc(userID, email)
	}
	return "mock-jwt-token", nil
}

func TestAuthUsecase_Signup(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a bcrypt hash and a normalized email", func(t *testing.T) {
		var stored *entity.User
		repo := &mockUserRepository{
			CreateFunc: func(user *entity.User) error {
				stored = user
				return nil
			},
		}

		uc := NewAuthUsecase(repo, &mockTokenGenerator{})
		require.NoError(t, uc.Signup(ctx, "  Doctor@Example.COM ", "password123"))

		require.NotNil(t, stored)
		assert.Equal(t, "doctor@example.com", stored.Email)
		assert.NotEqual(t, "password123", stored.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("password123")))
	})

	t.Run("short password is rejected before hashing", func(t *testing.T) {
		repo := &mockUserRepository{
			CreateFunc: func(user *entity.User) error {
				t.Fatal("Create must not be called")
				return nil
			},
		}

		err := NewAuthUsecase(repo, &mockTokenGenerator{}).Signup(ctx, "a@example.com", "short")
		assert.ErrorIs(t, err, domain.ErrWeakPassword)
	})

	t.Run("repository error is returned", func(t *testing.T) {
		repo := &mockUserRepository{
			CreateFunc: func(user *entity.User) error { return domain.ErrUserAlreadyExists },
		}

		err := NewAuthUsecase(repo, &mockTokenGenerator{}).Signup(ctx, "a@example.com", "password123")
		assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	})
}

func TestAuthUsecase_Login(t *testing.T) {
	ctx := context.Background()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	testUser := &entity.User{ID: 7, Email: "test@example.com", Password: string(hashed)}

	findTestUser := func(email string) (*entity.User, error) {
		if email == testUser.Email {
			return testUser, nil
		}
		return nil, domain.ErrUserNotFound
	}

	t.Run("successful login records the login time", func(t *testing.T) {
		fixed := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
		var touchedID uint
		var touchedAt time.Time
		repo := &mockUserRepository{
			FindByEmailFunc: findTestUser,
			TouchLastLoginFunc: func(id uint, at time.Time) error {
				touchedID, touchedAt = id, at
				return nil
			},
		}
		tokens := &mockTokenGenerator{
			GenerateTokenFunc: func(userID uint, email string) (string, error) {
				assert.Equal(t, testUser.ID, userID)
				assert.Equal(t, testUser.Email, email)
				return "signed", nil
			},
		}

		uc := NewAuthUsecase(repo, tokens)
		uc.now = func() time.Time { return fixed }

		token, err := uc.Login(ctx, "Test@Example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, "signed", token)
		assert.Equal(t, testUser.ID, touchedID)
		assert.Equal(t, fixed, touchedAt)
	})

	t.Run("last login failure does not fail the login", func(t *testing.T) {
		repo := &mockUserRepository{
			FindByEmailFunc:    findTestUser,
			TouchLastLoginFunc: func(uint, time.Time) error { return errors.New("db down") },
		}

		token, err := NewAuthUsecase(repo, &mockTokenGenerator{}).Login(ctx, "test@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, "mock-jwt-token", token)
	})

	tests := []struct {
		name     string
		email    string
		password string
		find     func(string) (*entity.User, error)
		tokenErr error
		wantIs   error
		wantMsg  string
	}{
		{name: "unknown email", email: "nobody@example.com", password: "password123", find: findTestUser, wantIs: domain.ErrInvalidCredentials},
		{name: "wrong password", email: "test@example.com", password: "wrong-password", find: findTestUser, wantIs: domain.ErrInvalidCredentials},
		{
			name: "repository failure", email: "test@example.com", password: "password123",
			find:    func(string) (*entity.User, error) { return nil, errors.New("connection reset") },
			wantMsg: "failed to look up user: connection reset",
		},
		{
			name: "token failure", email: "test@example.com", password: "password123",
			find: findTestUser, tokenErr: errors.New("failed to sign token"),
			wantMsg: "failed to generate token: failed to sign token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &mockTokenGenerator{}
			if tt.tokenErr != nil {
				tokens.GenerateTokenFunc = func(uint, string) (string, error) { return "", tt.tokenErr }
			}
			uc := NewAuthUsecase(&mockUserRepository{FindByEmailFunc: tt.find}, tokens)

			token, err := uc.Login(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.Empty(t, token)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.EqualError(t, err, tt.wantMsg)
			}
		})
	}
}
