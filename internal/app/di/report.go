package di

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"xray_backend/internal/app/config"
	"xray_backend/internal/feature/report/adapters/llm"
	reporthandler "xray_backend/internal/feature/report/transport/handler"
	"xray_backend/internal/feature/report/usecase"
	"xray_backend/internal/platform/cache"
	apphttp "xray_backend/internal/platform/http"
	"xray_backend/internal/shared/ratelimiter"
)

// NewReportUsecase はLLMクライアントにRedisキャッシュとレート制限を組み合わせます。
// rdb がnilの場合はキャッシュなしで動作します。
func NewReportUsecase(ctx context.Context, cfg *config.Config, rdb *redis.Client) (reporthandler.ReportUsecase, error) {
	hc := apphttp.NewHTTPClient(cfg.LLM.Timeout.Duration)
	gen, err := llm.New(ctx, llm.Config{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
	}, hc)
	if err != nil {
		return nil, err
	}

	// キャッシュヒットは制限枠を消費しない: cache(limit(llm))
	var limiter usecase.Limiter
	if cfg.LLM.RateLimit > 0 {
		limiter = ratelimiter.NewRateLimiter(cfg.LLM.RateLimit, cfg.LLM.RateInterval.Duration)
	}
	limited := usecase.NewLimitedTextGenerator(gen, limiter)
	cached := cache.NewCachingTextGenerator(rdb, cfg.Redis.CacheTTL.Duration, limited, "reports")

	slog.Info("report generator ready", "provider", cfg.LLM.Provider, "cache", rdb != nil, "rate_limit", cfg.LLM.RateLimit)
	return usecase.NewReportUsecase(cached, cfg.LLM.Timeout.Duration), nil
}
