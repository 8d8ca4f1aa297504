// Package google adapts the Gemini SDK to model.ChatModel.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dataloom/hybridqa/graph/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

// ChatModel implements model.ChatModel using Google's Gemini API.
//
// Sampling is pinned to temperature 0 with a bounded output token
// limit. Close must be called when the adapter is no longer needed.
type ChatModel struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// New creates a Gemini-backed ChatModel.
func New(ctx context.Context, apiKey, modelName string, maxTokens int32) (*ChatModel, error) {
	if apiKey == "" {
		return nil, errors.New("google: API key cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}

	return &ChatModel{
		client:    client,
		model:     modelName,
		maxTokens: maxTokens,
	}, nil
}

// Close releases the underlying Gemini client.
func (c *ChatModel) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Chat implements model.ChatModel.
//
// System messages become the model's system instruction; the remaining
// turns are concatenated into a single prompt, which matches how the
// pipeline issues its calls (one user message per request).
func (c *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	gm := c.client.GenerativeModel(c.model)
	gm.SetTemperature(0)
	gm.SetMaxOutputTokens(c.maxTokens)

	var prompt strings.Builder
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			gm.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(msg.Content)},
			}
			continue
		}
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(msg.Content)
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: generate content failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.ChatOut{}, errors.New("google: empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	return model.ChatOut{Text: sb.String()}, nil
}
