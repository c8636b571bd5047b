package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"xray_backend/internal/feature/report/usecase"
)

// OpenAIGenerator はOpenAI互換のChat Completions APIでテキストを生成します（Ollamaも含む）。
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

var _ usecase.TextGenerator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator はOpenAIGeneratorを生成します。baseURL が空の場合は公式エンドポイントを使います。
func NewOpenAIGenerator(apiKey, model, baseURL string, hc *http.Client) *OpenAIGenerator {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if hc != nil {
		config.HTTPClient = hc
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(config), model: model}
}

// Generate はプロンプトを1件のユーザーメッセージとして送信します。
func (c *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
