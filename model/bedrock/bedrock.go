// Package bedrock provides a model.ChatCompletionClient for foundation
// models hosted on Amazon Bedrock, using the Converse API.
package bedrock

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/hupe1980/agentrt/model"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "anthropic.claude-3-5-haiku-20241022-v1:0"

// Options configures the Bedrock model adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// Region overrides the region resolved from the AWS environment.
	Region string
}

// ConverseAPI is the subset of *bedrockruntime.Client used by Client.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client wraps the Bedrock Converse API behind model.ChatCompletionClient.
type Client struct {
	api  ConverseAPI
	opts Options
}

// NewClient loads the default AWS configuration (environment, shared config
// files, instance roles) and creates a Bedrock runtime client.
func NewClient(ctx context.Context, optFns ...func(o *Options)) (*Client, error) {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &Client{api: bedrockruntime.NewFromConfig(cfg), opts: opts}, nil
}

// NewClientFromAPI creates a client from an existing Converse implementation.
func NewClientFromAPI(api ConverseAPI, optFns ...func(o *Options)) *Client {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{api: api, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       DefaultModel,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Create implements model.ChatCompletionClient.
func (c *Client) Create(ctx context.Context, messages []model.Message) (*model.Result, error) {
	if len(messages) == 0 {
		return nil, model.ErrNoMessages
	}

	msgs, system := buildMessages(messages)
	if len(msgs) == 0 {
		return nil, model.ErrNoMessages
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.opts.Model),
		Messages: msgs,
		System:   system,
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(float32(c.opts.Temperature)),
		},
	}

	if c.opts.MaxTokens > 0 && c.opts.MaxTokens <= math.MaxInt32 {
		input.InferenceConfig.MaxTokens = aws.Int32(int32(c.opts.MaxTokens))
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock api error: %w", err)
	}

	return parseOutput(out)
}

// Info returns metadata describing this Bedrock client.
func (c *Client) Info() model.Info {
	return model.Info{
		Name:     c.opts.Model,
		Provider: "bedrock",
	}
}

// buildMessages converts role-tagged messages into Converse messages. The
// Converse API requires alternating roles, so consecutive messages of the
// same role are merged into one message with several text blocks.
func buildMessages(messages []model.Message) ([]types.Message, []types.SystemContentBlock) {
	var (
		out    []types.Message
		system []types.SystemContentBlock
	)

	for _, m := range messages {
		if m.Role == model.RoleSystem {
			system = append(system, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}

		role := types.ConversationRoleUser
		if m.Role == model.RoleAssistant {
			role = types.ConversationRoleAssistant
		}

		block := &types.ContentBlockMemberText{Value: m.Content}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, block)
			continue
		}

		out = append(out, types.Message{Role: role, Content: []types.ContentBlock{block}})
	}

	return out, system
}

func parseOutput(out *bedrockruntime.ConverseOutput) (*model.Result, error) {
	if out == nil {
		return nil, fmt.Errorf("bedrock api error: empty response")
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock api error: unexpected output %T", out.Output)
	}

	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}

	finishReason := "stop"
	switch out.StopReason {
	case types.StopReasonMaxTokens:
		finishReason = "length"
	case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
		finishReason = "content_filter"
	}

	res := &model.Result{
		Content:      sb.String(),
		FinishReason: finishReason,
	}

	if out.Usage != nil {
		res.Usage = model.Usage{
			PromptTokens:     int(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}

	return res, nil
}
