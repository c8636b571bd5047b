package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/liushuangls/go-anthropic/v2"

	"xray_backend/internal/feature/report/usecase"
)

// DefaultMaxTokens はClaudeの応答トークン上限です。
const DefaultMaxTokens = 2048

// ClaudeGenerator はAnthropic Messages APIでテキストを生成します。
type ClaudeGenerator struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

var _ usecase.TextGenerator = (*ClaudeGenerator)(nil)

// NewClaudeGenerator はClaudeGeneratorを生成します。
func NewClaudeGenerator(apiKey, model, baseURL string, maxTokens int, hc *http.Client) *ClaudeGenerator {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if hc != nil {
		opts = append(opts, anthropic.WithHTTPClient(hc))
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ClaudeGenerator{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Generate はプロンプトを1件のユーザーメッセージとして送信し、最初のテキストブロックを返します。
func (c *ClaudeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(prompt)},
			},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("claude API request failed: %w", err)
	}
	for _, block := range resp.Content {
		if block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("no response content")
}
