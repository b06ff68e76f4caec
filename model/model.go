package model

import (
	"context"
	"errors"
)

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem marks instructions that steer the model.
	RoleSystem Role = "system"
	// RoleUser marks input from a user or another agent.
	RoleUser Role = "user"
	// RoleAssistant marks prior model output.
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a chat completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Source names the author for user and assistant messages (e.g. "User",
	// an agent ID). Providers without a source field ignore it.
	Source string `json:"source,omitempty"`
}

// SystemMessage returns a system message with the given content.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user message attributed to source.
func UserMessage(content, source string) Message {
	return Message{Role: RoleUser, Content: content, Source: source}
}

// AssistantMessage returns an assistant message attributed to source.
func AssistantMessage(content, source string) Message {
	return Message{Role: RoleAssistant, Content: content, Source: source}
}

// Usage captures token usage statistics for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

// Result is the outcome of one chat completion.
type Result struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"` // "stop", "length", ...
	Usage        Usage  `json:"usage"`
	Cached       bool   `json:"cached"`
}

// Info contains metadata about a client implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// ChatCompletionClient is the model service agents call from their handlers.
// Create must honour ctx cancellation.
type ChatCompletionClient interface {
	Create(ctx context.Context, messages []Message) (*Result, error)

	// Info returns information about the client implementation.
	Info() Info
}

var (
	// ErrNoMessages is returned when Create is called without messages.
	ErrNoMessages = errors.New("no messages provided")

	// ErrCallLimitExceeded is returned by a limited client once its budget
	// is spent.
	ErrCallLimitExceeded = errors.New("exceeded max model calls")
)
