package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/model"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func textOutput(text string, reason types.StopReason) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
		}},
		StopReason: reason,
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(7),
			OutputTokens: aws.Int32(3),
		},
	}
}

func TestBuildMessages(t *testing.T) {
	msgs, system := buildMessages([]model.Message{
		model.SystemMessage("be brief"),
		model.UserMessage("one", "User"),
		model.UserMessage("two", "User"),
		model.AssistantMessage("ok", "bot"),
		model.UserMessage("three", "User"),
	})

	require.Len(t, system, 1)
	require.Len(t, msgs, 3)
	assert.Equal(t, types.ConversationRoleUser, msgs[0].Role)
	assert.Len(t, msgs[0].Content, 2)
	assert.Equal(t, types.ConversationRoleAssistant, msgs[1].Role)
	assert.Equal(t, types.ConversationRoleUser, msgs[2].Role)
}

func TestClient_Create(t *testing.T) {
	fake := &fakeConverse{out: textOutput("Hello there", types.StopReasonEndTurn)}
	c := NewClientFromAPI(fake, func(o *Options) { o.MaxTokens = 256 })

	res, err := c.Create(context.Background(), []model.Message{
		model.SystemMessage("You are a helpful AI assistant."),
		model.UserMessage("Hello", "User"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", res.Content)
	assert.Equal(t, "stop", res.FinishReason)
	assert.Equal(t, 10, res.Usage.Total())

	assert.Equal(t, DefaultModel, aws.ToString(fake.input.ModelId))
	assert.Equal(t, int32(256), aws.ToInt32(fake.input.InferenceConfig.MaxTokens))
	assert.Len(t, fake.input.System, 1)
	assert.Equal(t, model.Info{Name: DefaultModel, Provider: "bedrock"}, c.Info())
}

func TestClient_CreateFinishReasons(t *testing.T) {
	fake := &fakeConverse{out: textOutput("cut", types.StopReasonMaxTokens)}
	c := NewClientFromAPI(fake)

	res, err := c.Create(context.Background(), []model.Message{model.UserMessage("hi", "User")})
	require.NoError(t, err)
	assert.Equal(t, "length", res.FinishReason)
}

func TestClient_CreateErrors(t *testing.T) {
	c := NewClientFromAPI(&fakeConverse{err: errors.New("throttled")})

	_, err := c.Create(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrNoMessages)

	_, err = c.Create(context.Background(), []model.Message{model.UserMessage("hi", "User")})
	assert.ErrorContains(t, err, "throttled")

	c = NewClientFromAPI(&fakeConverse{out: &bedrockruntime.ConverseOutput{}})
	_, err = c.Create(context.Background(), []model.Message{model.UserMessage("hi", "User")})
	assert.ErrorContains(t, err, "unexpected output")
}
