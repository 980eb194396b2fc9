package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/comzer-gov/casbot/internal/extraction"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIExtractor asks a chat model for a JSON object at temperature 0.
type OpenAIExtractor struct {
	client openai.Client
	model  string
}

func NewOpenAIExtractor(apiKey, model, baseURL string, opts ...option.RequestOption) *OpenAIExtractor {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)
	return &OpenAIExtractor{
		client: openai.NewClient(clientOpts...),
		model:  model,
	}
}

func (e *OpenAIExtractor) Extract(ctx context.Context, systemPrompt, text string) (string, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", extraction.ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("extraction completed", "model", e.model, "finish_reason", resp.Choices[0].FinishReason, "content_bytes", len(content))
	if content == "" {
		return "", extraction.ErrEmptyResponse
	}
	return content, nil
}
