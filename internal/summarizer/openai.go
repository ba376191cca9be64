package summarizer

import (
	"context"
	"fmt"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/codemem/codemem-mcp/pkg/types"
)

const systemPrompt = "You compress source-code excerpts. Produce a terse digest of the " +
	"given excerpts preserving identifiers, file paths and key logic. Plain text only."

// OpenAISummarizer runs a single chat-completion pass over overflow text.
type OpenAISummarizer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds the summarizer settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New creates a chat-completion summarizer.
func New(cfg Config, logger *zap.Logger) *OpenAISummarizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAISummarizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Summarize implements Summarizer with one completion pass capped at the
// remaining token allowance.
func (s *OpenAISummarizer) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", fmt.Errorf("no token allowance for summary")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarization pass: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarization pass returned no choices")
	}

	summary := resp.Choices[0].Message.Content
	// The model may overshoot the allowance; enforce the cap locally so
	// the caller's budget guarantee holds. The cut backs up to a rune
	// boundary so a multi-byte character is never split.
	if types.EstimateTokens(summary) > maxTokens {
		cut := maxTokens * types.TokensPerChar
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut]
	}
	return summary, nil
}
