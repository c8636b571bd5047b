// Package cache provides Redis caching decorators for feature ports.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"xray_backend/internal/feature/report/usecase"
)

// CachingTextGenerator decorates a TextGenerator with Redis caching keyed by prompt hash.
// Identical patient documents produce identical prompts, so repeated report requests are
// served without calling the LLM.
type CachingTextGenerator struct {
	inner     usecase.TextGenerator
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.TextGenerator = (*CachingTextGenerator)(nil)

// NewCachingTextGenerator decorates inner with Redis caching.
// If ttl is 0, it defaults to 24 hours. If namespace is empty, it uses "reports".
func NewCachingTextGenerator(rdb *redis.Client, ttl time.Duration, inner usecase.TextGenerator, namespace string) *CachingTextGenerator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if namespace == "" {
		namespace = "reports"
	}
	return &CachingTextGenerator{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Generate returns the cached text for prompt, or calls the inner generator and caches the result.
func (c *CachingTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.Generate(ctx, prompt)
	}

	key := c.cacheKey(prompt)

	// 1) Check cache
	text, err := c.rdb.Get(ctx, key).Result()
	if err == nil && text != "" {
		return text, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("report cache read failed", "key", key, "error", err)
	}

	// 2) Fallback to the generator
	text, err = c.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	// 3) Store in cache (best effort)
	if text != "" {
		if err := c.rdb.Set(ctx, key, text, c.ttl).Err(); err != nil {
			slog.Warn("report cache write failed", "key", key, "error", err)
		}
	}
	return text, nil
}

// cacheKey generates a cache key for a prompt.
func (c *CachingTextGenerator) cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return c.namespace + ":" + hex.EncodeToString(sum[:])
}
