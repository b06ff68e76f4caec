// Package gollm provides a model.ChatCompletionClient backed by gollm, which
// fronts many hosted and local providers (OpenAI, Anthropic, Groq, Mistral,
// Ollama, ...) behind one API.
package gollm

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/gollm"

	"github.com/hupe1980/agentrt/model"
)

// Options configures the gollm model adapter.
type Options struct {
	// Provider is the gollm provider name, e.g. "ollama" or "groq".
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	// APIKey is optional; gollm falls back to the provider's environment
	// variable.
	APIKey string
}

// Client wraps a gollm.LLM behind model.ChatCompletionClient.
type Client struct {
	generate func(ctx context.Context, prompt *gollm.Prompt) (string, error)
	opts     Options
}

// NewClient creates a gollm LLM for opts.Provider.
func NewClient(optFns ...func(o *Options)) (*Client, error) {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Provider == "" {
		return nil, fmt.Errorf("gollm: provider is required")
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(opts.Provider),
		gollm.SetModel(opts.Model),
		gollm.SetMaxTokens(opts.MaxTokens),
		gollm.SetTemperature(opts.Temperature),
		gollm.SetMaxRetries(0), // retries belong to the caller
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}

	if opts.APIKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(opts.APIKey))
	}

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", opts.Provider, err)
	}

	return NewClientFromLLM(llm, func(o *Options) { *o = opts }), nil
}

// NewClientFromLLM wraps an existing gollm.LLM.
func NewClientFromLLM(llm gollm.LLM, optFns ...func(o *Options)) *Client {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		generate: func(ctx context.Context, prompt *gollm.Prompt) (string, error) {
			return llm.Generate(ctx, prompt)
		},
		opts: opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Create implements model.ChatCompletionClient. gollm takes a single prompt,
// so the conversation is flattened: system messages become the system
// prompt and prior assistant turns are inlined with an "[Assistant]" prefix.
func (c *Client) Create(ctx context.Context, messages []model.Message) (*model.Result, error) {
	if len(messages) == 0 {
		return nil, model.ErrNoMessages
	}

	prompt, err := buildPrompt(messages)
	if err != nil {
		return nil, err
	}

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("gollm %s error: %w", c.opts.Provider, err)
	}

	return &model.Result{
		Content:      text,
		FinishReason: "stop",
	}, nil
}

// Info returns metadata describing this gollm client.
func (c *Client) Info() model.Info {
	return model.Info{
		Name:     c.opts.Model,
		Provider: "gollm/" + c.opts.Provider,
	}
}

func buildPrompt(messages []model.Message) (*gollm.Prompt, error) {
	var (
		system []string
		parts  []string
	)

	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			system = append(system, m.Content)
		case model.RoleAssistant:
			if m.Content != "" {
				parts = append(parts, "[Assistant]: "+m.Content)
			}
		default:
			parts = append(parts, m.Content)
		}
	}

	if len(parts) == 0 {
		return nil, model.ErrNoMessages
	}

	var promptOpts []gollm.PromptOption
	if len(system) > 0 {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.Join(system, "\n"), gollm.CacheTypeEphemeral))
	}

	return gollm.NewPrompt(strings.Join(parts, "\n"), promptOpts...), nil
}
