package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/metrics"
)

// task is one handler invocation. Its goroutine runs only while it holds the
// baton; resume carries the baton back after a suspension (nil) or tells it
// the runtime was closed.
type task struct {
	env     *core.Envelope
	resolve core.Resolver
	agent   core.Agent
	ctx     context.Context
	release context.CancelFunc
	span    trace.Span
	start   time.Time
	resume  chan error
	parks   uint64
}

// deliveryLogger is implemented by loggers with a dedicated delivery record,
// such as *logging.RuntimeLogger.
type deliveryLogger interface {
	LogDelivery(msgID, msgType, recipient string, dur time.Duration, err error)
}

// ProcessNext performs one scheduling step. It first applies finished
// external calls and resumes handlers whose awaited results are available.
// Then, if the queue is empty, it returns false. Otherwise it delivers
// exactly one envelope, resumes every handler made runnable by that
// delivery, and returns true.
//
// ProcessNext never panics or returns an error because of a handler; per
// message failures are captured in that message's PendingResult.
func (e *Engine) ProcessNext() bool {
	e.step.Lock()
	defer e.step.Unlock()

	e.applyCompletions()
	e.drainReady()

	q, ok := e.dequeue()
	if !ok {
		return false
	}

	e.deliver(q)
	e.drainReady()

	return true
}

// Drive runs the scheduler until pr is resolved and returns its outcome.
// While only external calls are outstanding it blocks until one finishes or
// ctx is done. It returns ErrStalled when nothing queued, runnable or in
// flight can resolve pr, and ErrRuntimeClosed when the runtime was closed
// before pr was resolved.
func (e *Engine) Drive(ctx context.Context, pr *core.PendingResult) (any, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if pr.Done() {
			return pr.Result()
		}

		if e.ProcessNext() {
			continue
		}

		if pr.Done() {
			return pr.Result()
		}

		e.mu.Lock()
		closed := e.closed
		runnable := len(e.queue) + len(e.ready) + len(e.completed)
		inflight := e.inflight
		e.mu.Unlock()

		switch {
		case closed:
			return nil, core.ErrRuntimeClosed
		case runnable > 0:
			continue
		case inflight == 0:
			return nil, core.ErrStalled
		}

		select {
		case <-e.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (e *Engine) dequeue() (*queued, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return nil, false
	}

	q := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]

	e.metrics.QueueDepth(len(e.queue))

	return q, true
}

// deliver hands one envelope to its recipient and blocks until the handler
// yields the baton.
func (e *Engine) deliver(q *queued) {
	env := q.env
	recipient := env.Recipient()

	parent := e.ctx
	if q.parent.IsValid() {
		parent = trace.ContextWithSpanContext(parent, q.parent)
	}

	spanCtx, span := e.tracer.Start(parent, "agentrt.deliver",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("agentrt.message.id", env.ID()),
			attribute.String("agentrt.message.type", env.MessageType()),
			attribute.String("agentrt.agent.id", recipient.String()),
		),
	)

	if sender, ok := env.Sender(); ok {
		span.SetAttributes(attribute.String("agentrt.sender.id", sender.String()))
	}

	ctx, release := env.Token().Context(spanCtx)

	t := &task{
		env:     env,
		resolve: q.resolve,
		ctx:     ctx,
		release: release,
		span:    span,
		start:   time.Now(),
		resume:  make(chan error),
	}

	if env.Token().IsCancelled() {
		e.settle(t, nil, core.ErrCancelled)
		return
	}

	e.mu.Lock()
	reg := e.registry[recipient]
	e.mu.Unlock()

	if reg == nil || reg.agent == nil {
		e.settle(t, nil, fmt.Errorf("%w: %q", core.ErrUnknownAgent, recipient))
		return
	}

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeDeliver, &CallbackContext{
		Envelope:     env,
		AgentID:      recipient,
		CallbackType: CallbackBeforeDeliver,
	}); err != nil {
		e.settle(t, nil, err)
		return
	}
	t.agent = reg.agent

	e.logger.Debug("delivering message", "msg_id", env.ID(), "msg_type", env.MessageType(), "recipient", recipient)

	timer := e.metrics.DeliveryDuration(env.MessageType())
	go e.run(t)
	<-e.yield
	timer.ObserveDuration()
}

// run executes the handler on its own goroutine and gives the baton back
// when it returns.
func (e *Engine) run(t *task) {
	mc := &messageContext{
		engine: e,
		task:   t,
		logger: logging.WithAttrs(e.logger, "agent_id", t.env.Recipient(), "msg_id", t.env.ID()),
	}

	value, err := e.dispatch(mc, t)
	e.settle(t, value, err)

	e.yield <- struct{}{}
}

func (e *Engine) dispatch(mc *messageContext, t *task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.HandlerPanic(t.env.MessageType())
			e.logger.Error("handler panic recovered",
				"agent_id", t.env.Recipient(),
				"msg_id", t.env.ID(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)

			err = &core.HandlerError{
				Agent:       t.env.Recipient(),
				MessageType: t.env.MessageType(),
				Err:         fmt.Errorf("panic: %v", r),
			}
		}
	}()

	return t.agent.Dispatch(mc, t.env.Payload())
}

// settle resolves the task's PendingResult exactly once and reports the
// outcome. It runs while the caller holds the baton.
func (e *Engine) settle(t *task, value any, err error) {
	defer t.release()
	defer t.span.End()

	env := t.env
	recipient := env.Recipient()

	if err != nil {
		err = e.classify(t, err)
	} else if value == nil {
		value = core.NoReply
	}

	if !t.resolve(value, err) {
		return
	}

	outcome := metrics.OutcomeFulfilled

	switch {
	case err == nil:
		t.span.SetStatus(codes.Ok, "")
	case errors.Is(err, core.ErrCancelled):
		outcome = metrics.OutcomeCancelled
		t.span.SetStatus(codes.Error, "cancelled")
	default:
		outcome = metrics.OutcomeFailed
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
	}

	t.span.SetAttributes(attribute.String("agentrt.outcome", outcome))
	e.metrics.MessageProcessed(env.MessageType(), outcome)

	dur := time.Since(t.start)
	if dl, ok := e.logger.(deliveryLogger); ok {
		dl.LogDelivery(env.ID(), env.MessageType(), recipient.String(), dur, err)
	} else if err != nil {
		e.logger.Warn("message failed", "msg_id", env.ID(), "msg_type", env.MessageType(), "recipient", recipient, "error", err)
	} else {
		e.logger.Debug("message delivered", "msg_id", env.ID(), "msg_type", env.MessageType(), "recipient", recipient, "duration", dur)
	}

	cc := &CallbackContext{Envelope: env, AgentID: recipient, Value: value, Err: err}
	if err == nil {
		cc.CallbackType = CallbackAfterDeliver
	} else {
		cc.CallbackType = CallbackOnError
	}

	if cbErr := e.callbacks.ExecuteCallbacks(t.ctx, cc.CallbackType, cc); cbErr != nil {
		e.logger.Warn("delivery callback failed", "callback_type", cc.CallbackType, "msg_id", env.ID(), "error", cbErr)
	}
}

// classify decides how a handler failure is surfaced. Cancellation, closed
// runtime and the recipient's own unhandled-type error pass through
// unchanged; other failures, including unhandled errors of sub-requests, are
// wrapped in a HandlerError naming the recipient.
func (e *Engine) classify(t *task, err error) error {
	var he *core.HandlerError

	switch {
	case t.agent == nil:
		// failed before the handler ran
		return err
	case errors.Is(err, core.ErrCancelled),
		errors.Is(err, core.ErrRuntimeClosed):
		return err
	case isOwnUnhandled(err, t.env.Recipient()):
		return err
	case errors.As(err, &he) && he.Agent == t.env.Recipient():
		return err
	default:
		return &core.HandlerError{
			Agent:       t.env.Recipient(),
			MessageType: t.env.MessageType(),
			Err:         err,
		}
	}
}

// isOwnUnhandled reports whether err is, unwrapped, the unhandled-type error
// of recipient itself.
func isOwnUnhandled(err error, recipient core.AgentID) bool {
	ue, ok := err.(*core.UnhandledError)
	return ok && ue.Agent == recipient
}

// park records t as suspended and returns the suspension's generation.
// Wake-ups carrying an older generation are ignored.
func (e *Engine) park(t *task) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, false
	}

	t.parks++
	e.suspended[t] = t.parks
	e.metrics.Suspended(len(e.suspended))

	return t.parks, true
}

// makeReady moves a suspended task to the ready list. It may be called from
// any goroutine.
func (e *Engine) makeReady(t *task, gen uint64) {
	e.mu.Lock()
	if cur, ok := e.suspended[t]; !ok || cur != gen {
		e.mu.Unlock()
		return
	}
	delete(e.suspended, t)
	e.ready = append(e.ready, t)
	e.metrics.Suspended(len(e.suspended))
	e.mu.Unlock()

	e.signal()
}

// drainReady resumes runnable handlers in the order they became runnable
// until none is left.
func (e *Engine) drainReady() {
	for {
		e.mu.Lock()
		if len(e.ready) == 0 {
			e.mu.Unlock()
			return
		}
		t := e.ready[0]
		e.ready[0] = nil
		e.ready = e.ready[1:]
		e.mu.Unlock()

		e.logger.Debug("resuming handler", "msg_id", t.env.ID(), "recipient", t.env.Recipient())

		timer := e.metrics.DeliveryDuration(t.env.MessageType())
		t.resume <- nil
		<-e.yield
		timer.ObserveDuration()
	}
}

// startCall runs fn off the scheduler. Its outcome is posted as a completion
// and applied by the next scheduling step.
func (e *Engine) startCall(ctx context.Context, resolve core.Resolver, fn func(ctx context.Context) (any, error)) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.inflight++
	e.metrics.ExternalCallsInflight(e.inflight)
	e.mu.Unlock()

	go func() {
		value, err := safeCall(ctx, fn)

		e.mu.Lock()
		e.completed = append(e.completed, completion{resolve: resolve, value: value, err: err})
		e.mu.Unlock()

		e.signal()
	}()

	return true
}

func safeCall(ctx context.Context, fn func(ctx context.Context) (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("external call panic: %v", r)
		}
	}()

	return fn(ctx)
}

// applyCompletions resolves the PendingResults of finished external calls.
func (e *Engine) applyCompletions() {
	e.mu.Lock()
	done := e.completed
	e.completed = nil
	e.inflight -= len(done)
	inflight := e.inflight
	e.mu.Unlock()

	if len(done) == 0 {
		return
	}

	e.metrics.ExternalCallsInflight(inflight)

	for _, c := range done {
		c.resolve(c.value, c.err)
	}
}
