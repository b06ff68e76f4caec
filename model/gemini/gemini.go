// Package gemini provides a model.ChatCompletionClient for Google's Gemini
// models through the Gen AI SDK.
package gemini

import (
	"context"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentrt/model"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gemini-2.0-flash"

// Options configures the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
	APIKey          string
	BaseURL         string
}

// generator is the subset of *genai.Models used by Client.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client wraps the Gemini API behind model.ChatCompletionClient.
type Client struct {
	models generator
	opts   Options
}

// NewClient creates a client for the Gemini Developer API. Without an
// explicit APIKey the SDK reads GOOGLE_API_KEY or GEMINI_API_KEY.
func NewClient(ctx context.Context, optFns ...func(o *Options)) (*Client, error) {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}

	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{models: client.Models, opts: opts}, nil
}

func defaultOptions() Options {
	return Options{
		Model:           DefaultModel,
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
}

// Create implements model.ChatCompletionClient.
func (c *Client) Create(ctx context.Context, messages []model.Message) (*model.Result, error) {
	if len(messages) == 0 {
		return nil, model.ErrNoMessages
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(c.opts.Temperature)),
	}

	if c.opts.MaxOutputTokens > 0 && c.opts.MaxOutputTokens <= math.MaxInt32 {
		config.MaxOutputTokens = int32(c.opts.MaxOutputTokens)
	}

	contents, system := buildContents(messages)
	if system != nil {
		config.SystemInstruction = system
	}

	if len(contents) == 0 {
		return nil, model.ErrNoMessages
	}

	resp, err := c.models.GenerateContent(ctx, c.opts.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini api error: %w", err)
	}

	return parseResponse(resp)
}

// Info returns metadata describing this Gemini client.
func (c *Client) Info() model.Info {
	return model.Info{
		Name:     c.opts.Model,
		Provider: "gemini",
	}
}

// buildContents converts role-tagged messages into Gemini contents. System
// messages are merged into a single system instruction.
func buildContents(messages []model.Message) ([]*genai.Content, *genai.Content) {
	var system []string

	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			system = append(system, m.Content)
			continue
		case model.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	if len(system) == 0 {
		return contents, nil
	}

	return contents, &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
}

func parseResponse(resp *genai.GenerateContentResponse) (*model.Result, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini api error: no candidates in response")
	}

	candidate := resp.Candidates[0]

	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}

	finishReason := strings.ToLower(string(candidate.FinishReason))
	if finishReason == "" {
		finishReason = "stop"
	}

	res := &model.Result{
		Content:      sb.String(),
		FinishReason: finishReason,
	}

	if resp.UsageMetadata != nil {
		res.Usage = model.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	return res, nil
}
