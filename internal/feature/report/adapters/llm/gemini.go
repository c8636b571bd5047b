// Package llm はレポート生成に使用するLLMクライアント（Gemini / OpenAI互換 / Claude）を提供します。
package llm

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"xray_backend/internal/feature/report/usecase"
)

const (
	// DefaultGeminiModel はGemini APIのデフォルトモデルです。
	DefaultGeminiModel = "gemini-2.5-flash"
)

// GeminiGenerator はGoogle Gemini APIでテキストを生成します。
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// GeminiGeneratorがTextGeneratorを実装していることをコンパイル時に検証します。
var _ usecase.TextGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator はAPIキーを使用してGeminiGeneratorの新しいインスタンスを生成します。
func NewGeminiGenerator(ctx context.Context, apiKey, model string, hc *http.Client) (*GeminiGenerator, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate はプロンプトからテキストを生成します。
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini API request failed: %w", err)
	}
	return resp.Text(), nil
}
