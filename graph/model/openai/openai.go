// Package openai adapts the official OpenAI SDK to model.ChatModel.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dataloom/hybridqa/graph/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gpt-4o-mini"

// ChatModel implements model.ChatModel using OpenAI chat completions.
//
// Sampling is pinned to temperature 0 with a bounded output token
// limit so repeated batch runs are reproducible. The underlying client
// is safe for concurrent use.
type ChatModel struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

// New creates an OpenAI-backed ChatModel.
//
// modelName falls back to DefaultModel when empty; maxTokens bounds the
// completion length (<=0 selects 1024).
func New(apiKey, modelName string, maxTokens int64) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &ChatModel{
		client:    &client,
		model:     modelName,
		maxTokens: maxTokens,
	}, nil
}

// Chat implements model.ChatModel.
func (c *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			params = append(params, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			params = append(params, openai.AssistantMessage(msg.Content))
		default:
			params = append(params, openai.UserMessage(msg.Content))
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		Messages:            params,
		Temperature:         openai.Float(0),
		MaxCompletionTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("openai: chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return model.ChatOut{}, errors.New("openai: empty completion response")
	}

	return model.ChatOut{Text: completion.Choices[0].Message.Content}, nil
}
