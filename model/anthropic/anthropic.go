// Package anthropic provides a model.ChatCompletionClient for the Anthropic
// Claude Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentrt/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Client wraps the Anthropic Messages API behind model.ChatCompletionClient.
type Client struct {
	client *anthropic.Client
	opts   Options
}

// NewClient creates a new Anthropic client using the official SDK. Without
// an explicit APIKey the SDK reads ANTHROPIC_API_KEY.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Client{
		client: &client,
		opts:   opts,
	}
}

// NewClientFromSDK creates a new Anthropic client from an existing SDK client.
func NewClientFromSDK(client *anthropic.Client, optFns ...func(o *Options)) *Client {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Create implements model.ChatCompletionClient. System messages are sent
// through the request's system blocks; consecutive messages of one role are
// merged because the Messages API requires alternating turns.
func (c *Client) Create(ctx context.Context, messages []model.Message) (*model.Result, error) {
	system, turns := splitMessages(messages)
	if len(turns) == 0 {
		return nil, model.ErrNoMessages
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.opts.Model),
		Messages:    turns,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
	}

	if len(system) > 0 {
		params.System = system
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder

	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}

	return &model.Result{
		Content:      text.String(),
		FinishReason: finishReason,
		Usage: model.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// splitMessages separates system text from conversational turns.
func splitMessages(messages []model.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var (
		system []anthropic.TextBlockParam
		turns  []anthropic.MessageParam
		role   model.Role
		blocks []anthropic.ContentBlockParamUnion
	)

	flush := func() {
		if len(blocks) == 0 {
			return
		}
		if role == model.RoleAssistant {
			turns = append(turns, anthropic.NewAssistantMessage(blocks...))
		} else {
			turns = append(turns, anthropic.NewUserMessage(blocks...))
		}
		blocks = nil
	}

	for _, m := range messages {
		if m.Content == "" {
			continue
		}

		if m.Role == model.RoleSystem {
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
			continue
		}

		r := m.Role
		if r != model.RoleAssistant {
			r = model.RoleUser
		}

		if r != role {
			flush()
			role = r
		}

		blocks = append(blocks, anthropic.NewTextBlock(m.Content))
	}

	flush()

	return system, turns
}

// Info returns metadata describing this Anthropic client.
func (c *Client) Info() model.Info {
	return model.Info{
		Name:     c.opts.Model,
		Provider: "anthropic",
	}
}
