// Package anthropic adapts the official Anthropic SDK to model.ChatModel.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dataloom/hybridqa/graph/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "claude-3-5-haiku-latest"

// ChatModel implements model.ChatModel using the Anthropic Messages API.
//
// Sampling is pinned to temperature 0 with a bounded output token
// limit. System messages are passed through the dedicated system field
// per the Messages API contract.
type ChatModel struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New creates an Anthropic-backed ChatModel.
func New(apiKey, modelName string, maxTokens int64) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: API key cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

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

	var system []anthropic.TextBlockParam
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(0),
		System:      system,
		Messages:    params,
	})
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic: message request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return model.ChatOut{Text: sb.String()}, nil
}
