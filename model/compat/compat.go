// Package compat provides a model.ChatCompletionClient for servers speaking
// the OpenAI Chat Completions wire format: Azure OpenAI, vLLM, LocalAI,
// LM Studio, Ollama's /v1 endpoint and similar.
package compat

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/hupe1980/agentrt/model"
)

// Options configures the OpenAI-compatible adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
	// BaseURL is the API root, e.g. "http://localhost:8000/v1". For Azure it
	// is the resource endpoint.
	BaseURL string
	// Azure switches to Azure OpenAI authentication and URL layout. Model is
	// then the deployment name.
	Azure bool
}

// ChatCompletionAPI is the subset of *openai.Client used by Client.
type ChatCompletionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client wraps an OpenAI-compatible endpoint behind model.ChatCompletionClient.
type Client struct {
	api  ChatCompletionAPI
	opts Options
}

// NewClient creates a client for opts.BaseURL.
func NewClient(optFns ...func(o *Options)) (*Client, error) {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.BaseURL == "" {
		return nil, fmt.Errorf("compat: base url is required")
	}

	var cfg openai.ClientConfig
	if opts.Azure {
		cfg = openai.DefaultAzureConfig(opts.APIKey, opts.BaseURL)
	} else {
		cfg = openai.DefaultConfig(opts.APIKey)
		cfg.BaseURL = opts.BaseURL
	}

	return NewClientFromAPI(openai.NewClientWithConfig(cfg), func(o *Options) { *o = opts }), nil
}

// NewClientFromAPI creates a client from an existing API implementation.
func NewClientFromAPI(api ChatCompletionAPI, optFns ...func(o *Options)) *Client {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{api: api, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Create implements model.ChatCompletionClient.
func (c *Client) Create(ctx context.Context, messages []model.Message) (*model.Result, error) {
	if len(messages) == 0 {
		return nil, model.ErrNoMessages
	}

	req := openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    buildMessages(messages),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: float32(c.opts.Temperature),
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion error: no choices returned")
	}

	ch0 := resp.Choices[0]

	return &model.Result{
		Content:      ch0.Message.Content,
		FinishReason: string(ch0.FinishReason),
		Usage: model.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Info returns metadata describing this client.
func (c *Client) Info() model.Info {
	provider := "compat"
	if c.opts.Azure {
		provider = "azure"
	}

	return model.Info{
		Name:     c.opts.Model,
		Provider: provider,
	}
}

// buildMessages converts role-tagged messages into chat messages. Unknown
// roles are sent as user messages.
func buildMessages(messages []model.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, m := range messages {
		role := openai.ChatMessageRoleUser

		switch m.Role {
		case model.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case model.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}

		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	return out
}
