package usecase

import (
	"context"
	"fmt"
)

// LimitedTextGenerator は上流のLLM呼び出しの前にレート制限を待つTextGeneratorです。
// キャッシュの内側に置くことで、キャッシュヒットは制限枠を消費しません。
type LimitedTextGenerator struct {
	inner   TextGenerator
	limiter Limiter
}

// NewLimitedTextGenerator は inner の呼び出しを limiter で制限します。limiter はnilでも構いません。
func NewLimitedTextGenerator(inner TextGenerator, limiter Limiter) *LimitedTextGenerator {
	return &LimitedTextGenerator{inner: inner, limiter: limiter}
}

// Generate は制限枠を確保してから inner を呼び出します。
func (g *LimitedTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}
	return g.inner.Generate(ctx, prompt)
}

var _ TextGenerator = (*LimitedTextGenerator)(nil)
