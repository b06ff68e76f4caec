package model

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/metrics"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Create(ctx context.Context, messages []Message) (*Result, error) {
	args := m.Called(ctx, messages)
	res, _ := args.Get(0).(*Result)
	return res, args.Error(1)
}

func (m *mockClient) Info() Info {
	return Info{Name: "mock-model", Provider: "mock"}
}

func TestMessageConstructors(t *testing.T) {
	assert.Equal(t, Message{Role: RoleSystem, Content: "s"}, SystemMessage("s"))
	assert.Equal(t, Message{Role: RoleUser, Content: "u", Source: "User"}, UserMessage("u", "User"))
	assert.Equal(t, Message{Role: RoleAssistant, Content: "a", Source: "bot"}, AssistantMessage("a", "bot"))
	assert.Equal(t, 5, Usage{PromptTokens: 2, CompletionTokens: 3}.Total())
}

func TestMockClient(t *testing.T) {
	c := NewMockClient("test")
	c.AddResponse("Hello", "Hi there")

	res, err := c.Create(context.Background(), []Message{SystemMessage("sys"), UserMessage("Hello", "User")})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", res.Content)
	assert.Equal(t, "stop", res.FinishReason)

	res, err = c.Create(context.Background(), []Message{UserMessage("other", "User")})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", res.Content)

	require.Len(t, c.Calls(), 2)
	assert.Equal(t, "sys", c.Calls()[0][0].Content)
	assert.Equal(t, Info{Name: "test", Provider: "mock"}, c.Info())

	_, err = c.Create(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoMessages)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Create(ctx, []Message{UserMessage("x", "User")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallLimiter(t *testing.T) {
	l := NewCallLimiter(2)
	assert.Equal(t, 2, l.Remaining())

	require.NoError(t, l.Increment())
	require.NoError(t, l.Increment())

	err := l.Increment()
	assert.ErrorIs(t, err, ErrCallLimitExceeded)
	assert.Equal(t, 2, l.Count())
	assert.Equal(t, 0, l.Remaining())

	unlimited := NewCallLimiter(0)
	for i := 0; i < 10; i++ {
		require.NoError(t, unlimited.Increment())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}

func TestLimitedClient_Budget(t *testing.T) {
	next := &mockClient{}
	next.On("Create", mock.Anything, mock.Anything).Return(&Result{Content: "ok"}, nil).Once()

	c := NewLimitedClient(next, func(o *LimitOptions) { o.MaxCalls = 1 })

	res, err := c.Create(context.Background(), []Message{UserMessage("a", "User")})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content)

	_, err = c.Create(context.Background(), []Message{UserMessage("b", "User")})
	assert.ErrorIs(t, err, ErrCallLimitExceeded)
	assert.Equal(t, 0, c.Remaining())
	assert.Equal(t, "mock-model", c.Info().Name)

	next.AssertExpectations(t)
}

func TestLimitedClient_RateLimitHonoursContext(t *testing.T) {
	next := &mockClient{}
	next.On("Create", mock.Anything, mock.Anything).Return(&Result{Content: "ok"}, nil).Once()

	c := NewLimitedClient(next, func(o *LimitOptions) { o.RequestsPerSecond = 0.001 })

	_, err := c.Create(context.Background(), []Message{UserMessage("a", "User")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = c.Create(ctx, []Message{UserMessage("b", "User")})
	assert.Error(t, err)

	next.AssertNumberOfCalls(t, "Create", 1)
}

func TestLimitedClient_AbandonedWaitKeepsBudget(t *testing.T) {
	next := &mockClient{}
	next.On("Create", mock.Anything, mock.Anything).Return(&Result{Content: "ok"}, nil).Once()

	c := NewLimitedClient(next, func(o *LimitOptions) {
		o.MaxCalls = 2
		o.RequestsPerSecond = 0.001
	})

	_, err := c.Create(context.Background(), []Message{UserMessage("a", "User")})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Remaining())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = c.Create(ctx, []Message{UserMessage("b", "User")})
	require.ErrorContains(t, err, "rate limit wait")
	assert.Equal(t, 1, c.Remaining())

	next.AssertNumberOfCalls(t, "Create", 1)
}

type waitingClient struct{}

func (waitingClient) Create(ctx context.Context, _ []Message) (*Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (waitingClient) Info() Info { return Info{Name: "waiting"} }

func TestLimitedClient_Timeout(t *testing.T) {
	c := NewLimitedClient(waitingClient{}, func(o *LimitOptions) { o.Timeout = 10 * time.Millisecond })

	_, err := c.Create(context.Background(), []Message{UserMessage("a", "User")})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, c.Remaining())
}

func TestInstrumentedClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheus(reg)

	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Output: &buf})

	next := &mockClient{}
	next.On("Create", mock.Anything, mock.Anything).
		Return(&Result{Content: "ok", Usage: Usage{PromptTokens: 4, CompletionTokens: 2}}, nil).Once()
	next.On("Create", mock.Anything, mock.Anything).
		Return(nil, errors.New("upstream down")).Once()

	c := NewInstrumentedClient(next, rec, logger)

	_, err := c.Create(context.Background(), []Message{UserMessage("a", "User")})
	require.NoError(t, err)

	_, err = c.Create(context.Background(), []Message{UserMessage("b", "User")})
	require.EqualError(t, err, "upstream down")

	count, err := testutil.GatherAndCount(reg, "agentrt_model_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Contains(t, buf.String(), "Model call completed")
	assert.Contains(t, buf.String(), "Model call failed")

	next.AssertExpectations(t)
}

func TestInstrumentedClient_NilDependencies(t *testing.T) {
	c := NewInstrumentedClient(NewMockClient("m"), nil, nil)

	res, err := c.Create(context.Background(), []Message{UserMessage("a", "User")})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: a", res.Content)
	assert.Equal(t, "m", c.Info().Name)
}
