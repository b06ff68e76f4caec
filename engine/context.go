package engine

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
)

// messageContext is the core.MessageContext handed to one handler invocation.
type messageContext struct {
	engine *Engine
	task   *task
	logger logging.Logger
}

var _ core.MessageContext = (*messageContext)(nil)

func (mc *messageContext) Context() context.Context { return mc.task.ctx }

func (mc *messageContext) MessageID() string { return mc.task.env.ID() }

func (mc *messageContext) Sender() (core.AgentID, bool) { return mc.task.env.Sender() }

func (mc *messageContext) Recipient() core.AgentID { return mc.task.env.Recipient() }

func (mc *messageContext) Token() *core.CancellationToken { return mc.task.env.Token() }

func (mc *messageContext) Logger() logging.Logger { return mc.logger }

// Send enqueues a sub-request on behalf of the handling agent. The new
// message's token is linked to the current one.
func (mc *messageContext) Send(payload any, recipient core.AgentID) (*core.PendingResult, error) {
	t := mc.task
	return mc.engine.send(payload, recipient, t.env.Recipient(), t.env.Token(), trace.SpanContextFromContext(t.ctx))
}

// Call runs fn on a background goroutine. The returned result is resolved by
// the scheduler once fn returns; fn's context is cancelled when the current
// message's token is cancelled or the runtime is closed.
func (mc *messageContext) Call(fn func(ctx context.Context) (any, error)) *core.PendingResult {
	e := mc.engine
	t := mc.task

	token := core.NewCancellationToken()
	unlink := t.env.Token().Link(token)

	pr, resolve := core.NewPendingResult(core.NewID(), token)
	pr.OnResolve(unlink)
	if fn == nil {
		resolve(nil, errors.New("call: nil function"))
		return pr
	}

	parent := trace.ContextWithSpanContext(e.ctx, trace.SpanContextFromContext(t.ctx))
	ctx, release := token.Context(parent)

	started := e.startCall(ctx, resolve, func(ctx context.Context) (any, error) {
		defer release()
		return fn(ctx)
	})
	if !started {
		release()
		resolve(nil, core.ErrRuntimeClosed)
	}

	return pr
}

// Await suspends the handler until pr is resolved. The baton goes back to
// the scheduler meanwhile, so other messages are delivered. A handler whose
// token is cancelled while waiting is woken and gets ErrCancelled.
func (mc *messageContext) Await(pr *core.PendingResult) (any, error) {
	e := mc.engine
	t := mc.task

	if pr == nil {
		return nil, errors.New("await: nil pending result")
	}

	if pr == t.env.Result() {
		return nil, errors.New("await: handler cannot await its own result")
	}

	if pr.Done() {
		return pr.Result()
	}

	if t.env.Token().IsCancelled() {
		return nil, core.ErrCancelled
	}

	gen, ok := e.park(t)
	if !ok {
		return nil, core.ErrRuntimeClosed
	}

	removeResolve := pr.OnResolve(func() { e.makeReady(t, gen) })
	unlinkCancel := t.env.Token().LinkOnCancel(func() { e.makeReady(t, gen) })

	e.logger.Debug("handler suspended", "msg_id", t.env.ID(), "recipient", t.env.Recipient(), "awaiting", pr.ID())

	e.yield <- struct{}{}
	err := <-t.resume

	// only one of the two wakes this suspension
	removeResolve()
	unlinkCancel()

	if err != nil {
		return nil, err
	}

	if pr.Done() {
		return pr.Result()
	}

	return nil, core.ErrCancelled
}
