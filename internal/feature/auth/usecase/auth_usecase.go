// Package usecase はauthフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"xray_backend/internal/feature/auth/domain"
	"xray_backend/internal/feature/auth/domain/entity"
)

const (
	// minPasswordLength はパスワードの最低文字数です。
	minPasswordLength = 8

	// dummyHash はユーザーが存在しない場合にも比較を行うためのハッシュです。
	dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
)

// UserRepository はユーザーの永続化層です。
type UserRepository interface {
	// Create は新しいユーザーを保存します。メールアドレスが重複する場合は domain.ErrUserAlreadyExists を返します。
	Create(ctx context.Context, user *entity.User) error

	// FindByEmail はメールアドレスでユーザーを取得します。存在しない場合は domain.ErrUserNotFound を返します。
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByID はIDでユーザーを取得します。
	FindByID(ctx context.Context, id uint) (*entity.User, error)

	// TouchLastLogin は最終ログイン時刻を記録します。
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// TokenGenerator はアクセストークンを発行します（platform/jwt が実装します）。
type TokenGenerator interface {
	GenerateToken(userID uint, email string) (string, error)
}

type authUsecase struct {
	users  UserRepository
	tokens TokenGenerator
	now    func() time.Time
}

// NewAuthUsecase はauthUsecaseを生成します。
func NewAuthUsecase(users UserRepository, tokens TokenGenerator) *authUsecase {
	return &authUsecase{users: users, tokens: tokens, now: time.Now}
}

// normalizeEmail は比較と保存に使う形式にそろえます。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup はbcryptでハッシュ化したパスワードでユーザーを登録します。
func (u *authUsecase) Signup(ctx context.Context, email, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", domain.ErrWeakPassword, minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return u.users.Create(ctx, &entity.User{Email: normalizeEmail(email), Password: string(hashed)})
}

// Login は認証に成功した場合に署名済みトークンを返します。
// ユーザーが存在しない場合もbcrypt比較を実行し、応答時間をそろえます。
func (u *authUsecase) Login(ctx context.Context, email, password string) (string, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	hash := dummyHash
	if user != nil {
		hash = user.Password
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if user == nil || compareErr != nil {
		return "", domain.ErrInvalidCredentials
	}

	token, err := u.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	// 最終ログイン時刻の記録失敗ではログインを失敗させない
	if err := u.users.TouchLastLogin(ctx, user.ID, u.now()); err != nil {
		slog.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}
	return token, nil
}
