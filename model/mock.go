package model

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a lightweight in-memory ChatCompletionClient useful for tests
// and examples. It answers with a canned response keyed by the content of
// the last message, or echoes that content.
type MockClient struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	calls     [][]Message
}

// NewMockClient constructs a MockClient.
func NewMockClient(name string) *MockClient {
	return &MockClient{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockClient) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Create implements ChatCompletionClient.
func (m *MockClient) Create(ctx context.Context, messages []Message) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]Message(nil), messages...))

	last := messages[len(messages)-1].Content

	full, ok := m.responses[last]
	if !ok {
		full = fmt.Sprintf("Mock response to: %s", last)
	}

	return &Result{
		Content:      full,
		FinishReason: "stop",
		Usage:        Usage{PromptTokens: len(messages), CompletionTokens: 1},
	}, nil
}

// Calls returns a copy of every message list passed to Create.
func (m *MockClient) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}

// Info implements ChatCompletionClient.
func (m *MockClient) Info() Info { return m.info }
