// Package model provides chat-model adapters for workflow nodes.
package model

import "context"

// ChatModel is the interface workflow nodes use to call a language
// model. It abstracts over providers (OpenAI, Anthropic, Google) so the
// question-answering pipeline is provider-agnostic and testable with
// MockChatModel.
//
// Implementations must:
//   - Respect context cancellation and deadlines
//   - Use deterministic sampling (temperature 0) and a bounded output
//     token limit, so identical batches produce identical answers
//   - Return provider errors unwrapped enough for errors.Is/As
//
// Example:
//
//	out, err := m.Chat(ctx, []model.Message{
//	    {Role: model.RoleUser, Content: prompt},
//	})
type ChatModel interface {
	// Chat sends the conversation to the model and returns its reply.
	Chat(ctx context.Context, messages []Message) (ChatOut, error)
}

// Message is a single message in a model conversation.
type Message struct {
	// Role identifies the sender: use the Role* constants.
	Role string

	// Content is the message text.
	Content string
}

// Standard role constants, aligned with provider conventions.
const (
	// RoleSystem sets context or instructions; appears first if present.
	RoleSystem = "system"

	// RoleUser carries user input.
	RoleUser = "user"

	// RoleAssistant carries model output.
	RoleAssistant = "assistant"
)

// ChatOut is the output of one chat completion.
type ChatOut struct {
	// Text is the model's generated response.
	Text string
}
