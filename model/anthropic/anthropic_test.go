package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/model"
)

func TestSplitMessages(t *testing.T) {
	system, turns := splitMessages([]model.Message{
		model.SystemMessage("be helpful"),
		model.UserMessage("first", "User"),
		model.UserMessage("second", "User"),
		model.AssistantMessage("reply", "chat"),
		model.UserMessage("", "User"),
		model.UserMessage("third", "User"),
	})

	require.Len(t, system, 1)
	assert.Equal(t, "be helpful", system[0].Text)

	require.Len(t, turns, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, turns[0].Role)
	assert.Len(t, turns[0].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, turns[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, turns[2].Role)
}

func TestClient_Create(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "Hi!"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 9, "output_tokens": 2}
		}`)
	}))
	defer srv.Close()

	sdk := anthropic.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL+"/"))
	c := NewClientFromSDK(&sdk)

	res, err := c.Create(context.Background(), []model.Message{
		model.SystemMessage("You are a helpful AI assistant."),
		model.UserMessage("Hello", "User"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi!", res.Content)
	assert.Equal(t, "end_turn", res.FinishReason)
	assert.Equal(t, 11, res.Usage.Total())
	assert.NotNil(t, got["system"])
}

func TestClient_CreateRejectsSystemOnly(t *testing.T) {
	c := NewClient(func(o *Options) { o.APIKey = "test" })

	_, err := c.Create(context.Background(), []model.Message{model.SystemMessage("only")})
	assert.ErrorIs(t, err, model.ErrNoMessages)
}
