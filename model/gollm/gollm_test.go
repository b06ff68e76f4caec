package gollm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/gollm"

	"github.com/hupe1980/agentrt/model"
)

func TestBuildPrompt(t *testing.T) {
	p, err := buildPrompt([]model.Message{
		model.SystemMessage("be brief"),
		model.UserMessage("hi", "User"),
		model.AssistantMessage("hello", "bot"),
		model.UserMessage("again", "User"),
	})
	require.NoError(t, err)

	assert.Equal(t, "hi\n[Assistant]: hello\nagain", p.Input)
	assert.Equal(t, "be brief", p.SystemPrompt)

	_, err = buildPrompt([]model.Message{model.SystemMessage("only")})
	assert.ErrorIs(t, err, model.ErrNoMessages)
}

func TestClient_Create(t *testing.T) {
	var got *gollm.Prompt

	c := &Client{
		generate: func(_ context.Context, p *gollm.Prompt) (string, error) {
			got = p
			return "Hello there", nil
		},
		opts: Options{Provider: "ollama", Model: "llama3"},
	}

	res, err := c.Create(context.Background(), []model.Message{model.UserMessage("Hello", "User")})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", res.Content)
	assert.Equal(t, "stop", res.FinishReason)
	assert.Equal(t, "Hello", got.Input)
	assert.Equal(t, model.Info{Name: "llama3", Provider: "gollm/ollama"}, c.Info())

	_, err = c.Create(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrNoMessages)
}

func TestClient_CreateError(t *testing.T) {
	boom := errors.New("connection refused")
	c := &Client{
		generate: func(context.Context, *gollm.Prompt) (string, error) { return "", boom },
		opts:     Options{Provider: "ollama"},
	}

	_, err := c.Create(context.Background(), []model.Message{model.UserMessage("hi", "User")})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "gollm ollama error")
}

func TestNewClient_RequiresProvider(t *testing.T) {
	_, err := NewClient()
	assert.EqualError(t, err, "gollm: provider is required")
}
