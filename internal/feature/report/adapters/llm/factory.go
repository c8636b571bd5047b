package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"xray_backend/internal/feature/report/usecase"
)

// Config はLLMプロバイダーの設定です。
type Config struct {
	Provider  string // gemini | openai | claude | ollama
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// New はプロバイダー名に応じたTextGeneratorを生成します。
func New(ctx context.Context, cfg Config, hc *http.Client) (usecase.TextGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "gemini"
	}

	switch provider {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini: api key is required")
		}
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model, hc)

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: api key is required")
		}
		return NewOpenAIGenerator(cfg.APIKey, cfg.Model, cfg.BaseURL, hc), nil

	case "claude":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude: api key is required")
		}
		return NewClaudeGenerator(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens, hc), nil

	case "ollama":
		// Ollama は OpenAI 互換APIを /v1 で提供します。APIキーは無視されます。
		baseURL := strings.TrimRight(cfg.BaseURL, "/")
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		slog.Info("using ollama through the OpenAI-compatible API", "base_url", baseURL, "model", cfg.Model)
		return NewOpenAIGenerator(apiKey, cfg.Model, baseURL, hc), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
