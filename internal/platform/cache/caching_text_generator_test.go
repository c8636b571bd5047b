package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"xray_backend/internal/feature/report/usecase"
)

// mockTextGenerator はテスト用のTextGeneratorモック実装です。
type mockTextGenerator struct {
	generateFn func(ctx context.Context, prompt string) (string, error)
	calls      int
}

// Generate はモックのGenerate関数を呼び出します。
func (m *mockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.calls++
	if m.generateFn != nil {
		return m.generateFn(ctx, prompt)
	}
	return "", nil
}

func keyFor(namespace, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return namespace + ":" + hex.EncodeToString(sum[:])
}

// TestNewCachingTextGenerator_Defaults はデフォルト値（TTLとnamespace）が正しく設定されることを検証します。
func TestNewCachingTextGenerator_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		ttl               time.Duration
		namespace         string
		expectedTTL       time.Duration
		expectedNamespace string
	}{
		{
			name:              "default values when zero/empty",
			expectedTTL:       24 * time.Hour,
			expectedNamespace: "reports",
		},
		{
			name:              "negative ttl uses default",
			ttl:               -1 * time.Minute,
			expectedTTL:       24 * time.Hour,
			expectedNamespace: "reports",
		},
		{
			name:              "custom values preserved",
			ttl:               10 * time.Minute,
			namespace:         "custom",
			expectedTTL:       10 * time.Minute,
			expectedNamespace: "custom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := NewCachingTextGenerator(nil, tt.ttl, &mockTextGenerator{}, tt.namespace)
			if g.ttl != tt.expectedTTL {
				t.Errorf("expected TTL %v, got %v", tt.expectedTTL, g.ttl)
			}
			if g.namespace != tt.expectedNamespace {
				t.Errorf("expected namespace %q, got %q", tt.expectedNamespace, g.namespace)
			}
		})
	}
}

// TestCachingTextGenerator_NilRedis はRedisがnilの場合にキャッシュをバイパスすることを検証します。
func TestCachingTextGenerator_NilRedis(t *testing.T) {
	t.Parallel()

	inner := &mockTextGenerator{generateFn: func(ctx context.Context, prompt string) (string, error) {
		return "report", nil
	}}
	g := NewCachingTextGenerator(nil, time.Hour, inner, "reports")

	text, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "report" || inner.calls != 1 {
		t.Errorf("expected inner call returning %q, got %q (%d calls)", "report", text, inner.calls)
	}
}

// TestCachingTextGenerator_CacheHit はキャッシュヒット時にLLMを呼ばないことを検証します。
func TestCachingTextGenerator_CacheHit(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectGet(keyFor("reports", "prompt")).SetVal("cached report")

	inner := &mockTextGenerator{}
	g := NewCachingTextGenerator(rdb, time.Hour, inner, "reports")

	text, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "cached report" {
		t.Errorf("expected cached text, got %q", text)
	}
	if inner.calls != 0 {
		t.Error("inner generator should not be called on cache hit")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// TestCachingTextGenerator_CacheMiss はキャッシュミス時に生成結果を保存することを検証します。
func TestCachingTextGenerator_CacheMiss(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	key := keyFor("reports", "prompt")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, "fresh report", time.Hour).SetVal("OK")

	inner := &mockTextGenerator{generateFn: func(ctx context.Context, prompt string) (string, error) {
		return "fresh report", nil
	}}
	g := NewCachingTextGenerator(rdb, time.Hour, inner, "reports")

	text, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "fresh report" {
		t.Errorf("expected %q, got %q", "fresh report", text)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// TestCachingTextGenerator_InnerError は生成エラーが伝播され、キャッシュされないことを検証します。
func TestCachingTextGenerator_InnerError(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	expectedErr := errors.New("quota exceeded")
	mock.ExpectGet(keyFor("reports", "prompt")).RedisNil()

	inner := &mockTextGenerator{generateFn: func(ctx context.Context, prompt string) (string, error) {
		return "", expectedErr
	}}
	g := NewCachingTextGenerator(rdb, time.Hour, inner, "reports")

	_, err := g.Generate(context.Background(), "prompt")
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

// TestCachingTextGenerator_RedisDown はRedis障害時でもLLMにフォールバックすることを検証します。
func TestCachingTextGenerator_RedisDown(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	key := keyFor("reports", "prompt")
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, "report", time.Hour).SetErr(errors.New("connection refused"))

	inner := &mockTextGenerator{generateFn: func(ctx context.Context, prompt string) (string, error) {
		return "report", nil
	}}
	g := NewCachingTextGenerator(rdb, time.Hour, inner, "reports")

	text, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "report" {
		t.Errorf("expected %q, got %q", "report", text)
	}
}

// TestCacheKey はプロンプトごとに異なるキーが生成されることを検証します。
func TestCacheKey(t *testing.T) {
	t.Parallel()

	g := NewCachingTextGenerator(nil, 0, &mockTextGenerator{}, "")
	a := g.cacheKey("prompt a")
	b := g.cacheKey("prompt b")
	if a == b {
		t.Error("different prompts must not share a key")
	}
	if a != g.cacheKey("prompt a") {
		t.Error("cache key must be deterministic")
	}
	if len(a) != len("reports:")+64 {
		t.Errorf("unexpected key %q", a)
	}
}

// countingLimiter はWaitの呼び出し回数を数えるLimiterです。
type countingLimiter struct {
	calls int
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.calls++
	return nil
}

// TestCachingTextGenerator_HitSkipsRateLimit はレート制限をキャッシュの内側に置いた場合、
// キャッシュヒットが制限枠を消費しないことを検証します。
func TestCachingTextGenerator_HitSkipsRateLimit(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	key := keyFor("reports", "prompt")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, "fresh report", time.Hour).SetVal("OK")
	mock.ExpectGet(key).SetVal("fresh report")

	inner := &mockTextGenerator{generateFn: func(ctx context.Context, prompt string) (string, error) {
		return "fresh report", nil
	}}
	limiter := &countingLimiter{}
	g := NewCachingTextGenerator(rdb, time.Hour, usecase.NewLimitedTextGenerator(inner, limiter), "reports")

	for i := 0; i < 2; i++ {
		text, err := g.Generate(context.Background(), "prompt")
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if text != "fresh report" {
			t.Errorf("call %d: expected %q, got %q", i, "fresh report", text)
		}
	}
	if limiter.calls != 1 {
		t.Errorf("expected 1 rate limit token for 1 upstream call, got %d", limiter.calls)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}
