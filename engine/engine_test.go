package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/testutil"
	"github.com/hupe1980/agentrt/logging"
)

func newTestEngine(t *testing.T, optFns ...func(o *Options)) *Engine {
	t.Helper()

	e := New(optFns...)
	t.Cleanup(func() { _ = e.Close() })

	return e
}

func TestRegister(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.Register("a", testutil.PingPong()))

	err := e.Register("a", testutil.PingPong())
	require.ErrorIs(t, err, core.ErrDuplicateRegistration)

	err = e.Register("", testutil.PingPong())
	require.ErrorIs(t, err, core.ErrInvalidAgentID)

	err = e.Register("b", nil)
	require.Error(t, err)

	id, err := e.RegisterAndGet("c", testutil.PingPong())
	require.NoError(t, err)
	assert.Equal(t, core.AgentID("c"), id)

	assert.Equal(t, []core.AgentID{"a", "c"}, e.Agents())
}

func TestSendMessage_UnknownAgent(t *testing.T) {
	e := newTestEngine(t)

	pr, err := e.SendMessage(testutil.Ping{}, "nobody")
	require.ErrorIs(t, err, core.ErrUnknownAgent)
	assert.Nil(t, pr)
	assert.Equal(t, 0, e.Len())

	_, err = e.SendMessage(testutil.Ping{}, "")
	require.ErrorIs(t, err, core.ErrInvalidAgentID)
}

func TestPingPong(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("pp", testutil.PingPong()))

	pr, err := e.SendMessage(testutil.Ping{N: 5}, "pp")
	require.NoError(t, err)
	assert.False(t, pr.Done())
	assert.Equal(t, 1, e.Len())

	assert.True(t, e.ProcessNext())
	assert.False(t, e.ProcessNext())

	v, err := pr.Result()
	require.NoError(t, err)
	assert.Equal(t, testutil.Pong{N: 6}, v)
	assert.Equal(t, core.ResultFulfilled, pr.State())
}

func TestProcessNext_FIFO(t *testing.T) {
	e := newTestEngine(t)

	journal := new(testutil.Journal)
	require.NoError(t, e.Register("a", testutil.NewFuncAgent("a", func(_ core.MessageContext, payload any) (any, error) {
		journal.Add("a:%v", payload)
		return nil, nil
	})))
	require.NoError(t, e.Register("b", testutil.NewFuncAgent("b", func(_ core.MessageContext, payload any) (any, error) {
		journal.Add("b:%v", payload)
		return nil, nil
	})))

	var results []*core.PendingResult
	for i, to := range []core.AgentID{"a", "b", "a", "b"} {
		pr, err := e.SendMessage(i, to)
		require.NoError(t, err)
		results = append(results, pr)
	}

	for i := range results {
		require.True(t, e.ProcessNext())
		for j, pr := range results {
			assert.Equal(t, j <= i, pr.Done(), "result %d after step %d", j, i)
		}
	}

	assert.False(t, e.ProcessNext())
	assert.Equal(t, []string{"a:0", "b:1", "a:2", "b:3"}, journal.Entries())

	v, err := results[0].Result()
	require.NoError(t, err)
	assert.Equal(t, core.NoReply, v)
}

func TestLazyConstruction(t *testing.T) {
	e := newTestEngine(t)

	factory, calls := testutil.CountingFactory(func() (core.Agent, error) {
		time.Sleep(10 * time.Millisecond)
		return testutil.PingPong()()
	})
	require.NoError(t, e.Register("pp", factory))

	_, ok := e.Get("pp")
	assert.False(t, ok)
	assert.Equal(t, int32(0), calls.Load())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := e.SendMessage(testutil.Ping{N: n}, "pp")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 32, e.Len())

	a, ok := e.Get("pp")
	require.True(t, ok)
	assert.Equal(t, "ping-pong", a.Description())
}

func TestFactoryError(t *testing.T) {
	e := newTestEngine(t)

	factory, calls := testutil.CountingFactory(func() (core.Agent, error) {
		return nil, fmt.Errorf("%w: testutil.Ping", core.ErrHandlerTypeConflict)
	})
	require.NoError(t, e.Register("broken", factory))

	_, err := e.SendMessage(testutil.Ping{}, "broken")
	require.ErrorIs(t, err, core.ErrHandlerTypeConflict)
	assert.Equal(t, 0, e.Len())

	_, ok := e.Get("broken")
	assert.False(t, ok)

	// construction is retried on the next send
	_, err = e.SendMessage(testutil.Ping{}, "broken")
	require.ErrorIs(t, err, core.ErrHandlerTypeConflict)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFactoryPanicAndNil(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.Register("panics", func() (core.Agent, error) { panic("boom") }))
	require.NoError(t, e.Register("nil", func() (core.Agent, error) { return nil, nil }))

	_, err := e.SendMessage(testutil.Ping{}, "panics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factory panic: boom")

	_, err = e.SendMessage(testutil.Ping{}, "nil")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil agent")
}

func TestUnhandledMessageType(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("pp", testutil.PingPong()))

	bad, err := e.SendMessage("text", "pp")
	require.NoError(t, err)
	good, err := e.SendMessage(testutil.Ping{N: 1}, "pp")
	require.NoError(t, err)

	require.True(t, e.ProcessNext())
	require.True(t, e.ProcessNext())

	_, err = bad.Result()
	require.ErrorIs(t, err, core.ErrUnhandledMessageType)

	var he *core.HandlerError
	assert.False(t, errors.As(err, &he))

	v, err := good.Result()
	require.NoError(t, err)
	assert.Equal(t, testutil.Pong{N: 2}, v)
}

func TestHandlerPanic(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.Register("panics", testutil.NewFuncAgent("panics", func(core.MessageContext, any) (any, error) {
		panic("handler exploded")
	})))
	require.NoError(t, e.Register("pp", testutil.PingPong()))

	bad, err := e.SendMessage(testutil.Ping{}, "panics")
	require.NoError(t, err)
	good, err := e.SendMessage(testutil.Ping{N: 1}, "pp")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		assert.True(t, e.ProcessNext())
		assert.True(t, e.ProcessNext())
	})

	_, err = bad.Result()
	var he *core.HandlerError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, core.AgentID("panics"), he.Agent)
	assert.Equal(t, "testutil.Ping", he.MessageType)
	assert.Contains(t, err.Error(), "handler exploded")

	_, err = good.Result()
	require.NoError(t, err)
}

func TestHandlerReturnsCancelled(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.Register("quitter", testutil.NewFuncAgent("quitter", func(core.MessageContext, any) (any, error) {
		return nil, core.ErrCancelled
	})))

	pr, err := e.SendMessage(testutil.Ping{}, "quitter")
	require.NoError(t, err)
	require.True(t, e.ProcessNext())

	_, err = pr.Result()
	require.ErrorIs(t, err, core.ErrCancelled)

	var he *core.HandlerError
	assert.False(t, errors.As(err, &he))
}

func TestCancelBeforeDelivery(t *testing.T) {
	e := newTestEngine(t)

	invoked := false
	require.NoError(t, e.Register("a", testutil.NewFuncAgent("a", func(core.MessageContext, any) (any, error) {
		invoked = true
		return nil, nil
	})))

	pr, err := e.SendMessage(testutil.Ping{}, "a")
	require.NoError(t, err)

	pr.Cancel()
	pr.Cancel()
	assert.True(t, pr.Token().IsCancelled())
	assert.False(t, pr.Done())

	assert.True(t, e.ProcessNext())
	assert.False(t, invoked)

	_, err = pr.Result()
	require.ErrorIs(t, err, core.ErrCancelled)
}

func TestCancelDuringHandlerIsAdvisory(t *testing.T) {
	e := newTestEngine(t)

	var pr *core.PendingResult
	require.NoError(t, e.Register("a", testutil.NewFuncAgent("a", func(mc core.MessageContext, _ any) (any, error) {
		pr.Cancel()
		assert.True(t, mc.Token().IsCancelled())
		return "finished anyway", nil
	})))

	var err error
	pr, err = e.SendMessage(testutil.Ping{}, "a")
	require.NoError(t, err)
	require.True(t, e.ProcessNext())

	v, err := pr.Result()
	require.NoError(t, err)
	assert.Equal(t, "finished anyway", v)
}

func TestSendWithParentToken(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("pp", testutil.PingPong()))

	parent := core.NewCancellationToken()
	pr, err := e.SendMessage(testutil.Ping{}, "pp", func(o *SendOptions) {
		o.Sender = "client"
		o.Parent = parent
	})
	require.NoError(t, err)

	parent.Cancel()
	require.True(t, e.ProcessNext())

	_, err = pr.Result()
	require.ErrorIs(t, err, core.ErrCancelled)
}

func TestMessageContext(t *testing.T) {
	e := newTestEngine(t)

	type seen struct {
		msgID     string
		sender    core.AgentID
		hasSender bool
		recipient core.AgentID
		ctxErr    error
	}

	var got seen
	require.NoError(t, e.Register("a", testutil.NewFuncAgent("a", func(mc core.MessageContext, _ any) (any, error) {
		got.msgID = mc.MessageID()
		got.sender, got.hasSender = mc.Sender()
		got.recipient = mc.Recipient()
		got.ctxErr = mc.Context().Err()
		mc.Logger().Info("inside handler")
		return nil, nil
	})))

	pr, err := e.SendMessage(testutil.Note{}, "a", func(o *SendOptions) { o.Sender = "client" })
	require.NoError(t, err)
	require.True(t, e.ProcessNext())
	require.True(t, pr.Done())

	assert.Equal(t, pr.ID(), got.msgID)
	assert.True(t, got.hasSender)
	assert.Equal(t, core.AgentID("client"), got.sender)
	assert.Equal(t, core.AgentID("a"), got.recipient)
	assert.NoError(t, got.ctxErr)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: &buf})
	e := newTestEngine(t, func(o *Options) { o.Logger = logger })
	require.NoError(t, e.Register("pp", testutil.PingPong()))

	_, err := e.SendMessage(testutil.Ping{}, "pp")
	require.NoError(t, err)
	_, err = e.SendMessage("unhandled", "pp")
	require.NoError(t, err)

	require.True(t, e.ProcessNext())
	require.True(t, e.ProcessNext())

	out := buf.String()
	assert.Contains(t, out, "agent registered")
	assert.Contains(t, out, "message enqueued")
	assert.Contains(t, out, "Message delivered")
	assert.Contains(t, out, "Message delivery failed")
	assert.Contains(t, out, `"msg_type":"testutil.Ping"`)
}

func TestCloseIdempotentAndRejects(t *testing.T) {
	e := New()
	require.NoError(t, e.Register("pp", testutil.PingPong()))

	pr, err := e.SendMessage(testutil.Ping{}, "pp")
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = pr.Result()
	require.ErrorIs(t, err, core.ErrRuntimeClosed)
	assert.True(t, pr.Token().IsCancelled())
	assert.Equal(t, 0, e.Len())

	_, err = e.SendMessage(testutil.Ping{}, "pp")
	require.ErrorIs(t, err, core.ErrRuntimeClosed)

	err = e.Register("other", testutil.PingPong())
	require.ErrorIs(t, err, core.ErrRuntimeClosed)

	assert.False(t, e.ProcessNext())

	_, err = e.Drive(context.Background(), pr)
	require.ErrorIs(t, err, core.ErrRuntimeClosed)
}
