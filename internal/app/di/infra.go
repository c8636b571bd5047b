package di

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"xray_backend/internal/app/config"
	authadapters "xray_backend/internal/feature/auth/adapters"
	"xray_backend/internal/feature/auth/domain/entity"
	authhandler "xray_backend/internal/feature/auth/transport/handler"
	authusecase "xray_backend/internal/feature/auth/usecase"
	"xray_backend/internal/platform/db"
	jwtmw "xray_backend/internal/platform/jwt"
	appredis "xray_backend/internal/platform/redis"
)

// NewRedis はRedisが有効な場合に接続します。接続できない場合はnilを返し、キャッシュなしで動作させます。
func NewRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	rdb, err := appredis.NewRedisClient(ctx, appredis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		slog.Warn("redis unavailable, running without report cache", "error", err)
		return nil
	}
	return rdb
}

// DBConfig は設定ファイルの値をdbパッケージの設定に変換します。
func DBConfig(cfg config.DatabaseConfig) db.Config {
	return db.Config{
		Driver:         cfg.Driver,
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       cfg.Password,
		Name:           cfg.Name,
		SSLMode:        cfg.SSLMode,
		Path:           cfg.Path,
		ConnectTimeout: cfg.ConnectTimeout.Duration,
		AutoMigrate:    cfg.AutoMigrate,
	}
}

// Auth は認証機能の構成要素です。
type Auth struct {
	Handler *authhandler.AuthHandler
	Tokens  *jwtmw.Generator
	DB      *gorm.DB
}

// NewAuth はユーザーDBに接続し、ハンドラーとトークン検証器を生成します。
func NewAuth(ctx context.Context, cfg *config.Config) (*Auth, error) {
	gdb, err := db.Open(ctx, DBConfig(cfg.Database), &entity.User{})
	if err != nil {
		return nil, err
	}
	tokens := jwtmw.NewGenerator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration)
	uc := authusecase.NewAuthUsecase(authadapters.NewUserGorm(gdb), tokens)
	return &Auth{Handler: authhandler.NewAuthHandler(uc), Tokens: tokens, DB: gdb}, nil
}
