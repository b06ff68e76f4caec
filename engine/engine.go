package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/metrics"
)

// TracerName is the instrumentation name used when no tracer is configured.
const TracerName = "github.com/hupe1980/agentrt/engine"

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	rt := New(func(o *Options) {
//	    o.Logger = logger
//	    o.Metrics = metrics.NewPrometheus(prometheus.DefaultRegisterer)
//	})
type Options struct {
	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil to ensure no logging dependencies.
	Logger logging.Logger

	// Metrics receives queue, delivery and scheduler measurements.
	// Defaults to metrics.Nop().
	Metrics metrics.Recorder

	// Tracer starts one span per delivered envelope. Defaults to the tracer
	// of the global OpenTelemetry provider.
	Tracer trace.Tracer

	// Callbacks holds delivery lifecycle hooks. Defaults to an empty manager.
	Callbacks *CallbackManager

	// Context is the parent of every handler and external call context.
	// Close cancels the derived context. Defaults to context.Background().
	Context context.Context
}

// SendOptions configures a single SendMessage call.
type SendOptions struct {
	// Sender marks the message as originating from an agent.
	Sender core.AgentID

	// Parent, when set, cancels the message's token whenever Parent is
	// cancelled.
	Parent *core.CancellationToken
}

type registration struct {
	factory core.AgentFactory
	agent   core.Agent
}

// queued is an envelope waiting in the runtime queue.
type queued struct {
	env     *core.Envelope
	resolve core.Resolver
	parent  trace.SpanContext
}

// completion is the outcome of an external call waiting to be applied by the
// scheduler.
type completion struct {
	resolve core.Resolver
	value   any
	err     error
}

// Engine is the agent runtime: it owns the registry of agent identities, the
// FIFO queue of envelopes and the cooperative scheduler that delivers them.
//
// Exactly one handler runs at a time. A handler holds the baton from the
// moment ProcessNext hands it an envelope (or resumes it) until it returns or
// suspends in MessageContext.Await; the driver calling ProcessNext is blocked
// meanwhile. Handlers may therefore mutate agent state without locks.
//
// Public methods are safe to call from multiple goroutines. ProcessNext calls
// are serialized. Close and Drive must not be called from inside a handler.
type Engine struct {
	logger    logging.Logger
	metrics   metrics.Recorder
	tracer    trace.Tracer
	callbacks *CallbackManager

	ctx    context.Context
	cancel context.CancelCauseFunc

	// mu guards the fields below. It is never held while a handler runs.
	mu        sync.Mutex
	closed    bool
	registry  map[core.AgentID]*registration
	order     []core.AgentID
	queue     []*queued
	ready     []*task
	suspended map[*task]uint64
	completed []completion
	inflight  int

	constructing singleflight.Group

	// step serializes ProcessNext and Close.
	step  sync.Mutex
	yield chan struct{}
	wake  chan struct{}
}

// New creates an Engine with sensible defaults and optional configuration.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger:  logging.NoOpLogger{},
		Metrics: metrics.Nop(),
		Context: context.Background(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(TracerName)
	}

	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	if opts.Context == nil {
		opts.Context = context.Background()
	}

	ctx, cancel := context.WithCancelCause(opts.Context)

	return &Engine{
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		callbacks: opts.Callbacks,
		ctx:       ctx,
		cancel:    cancel,
		registry:  make(map[core.AgentID]*registration),
		suspended: make(map[*task]uint64),
		yield:     make(chan struct{}),
		wake:      make(chan struct{}, 1),
	}
}

// Callbacks returns the engine's callback manager so hooks can be registered
// after construction.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Register binds id to factory. The agent is not constructed until the first
// message addressed to id is sent.
func (e *Engine) Register(id core.AgentID, factory core.AgentFactory) error {
	if !id.Valid() {
		return core.ErrInvalidAgentID
	}

	if factory == nil {
		return fmt.Errorf("register %q: nil factory", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return core.ErrRuntimeClosed
	}

	if _, ok := e.registry[id]; ok {
		return fmt.Errorf("%w: %q", core.ErrDuplicateRegistration, id)
	}

	e.registry[id] = &registration{factory: factory}
	e.order = append(e.order, id)

	e.logger.Debug("agent registered", "agent_id", id)

	return nil
}

// RegisterAndGet registers factory under id and returns the identity to
// address messages to.
func (e *Engine) RegisterAndGet(id core.AgentID, factory core.AgentFactory) (core.AgentID, error) {
	if err := e.Register(id, factory); err != nil {
		return "", err
	}
	return id, nil
}

// SendMessage enqueues payload for recipient and returns the message's
// PendingResult immediately. Nothing is delivered until the runtime is
// driven with ProcessNext or Drive.
//
// An unregistered recipient yields ErrUnknownAgent and leaves the queue
// untouched. The recipient is constructed on its first message; a factory
// error is returned here and nothing is enqueued.
func (e *Engine) SendMessage(payload any, recipient core.AgentID, optFns ...func(o *SendOptions)) (*core.PendingResult, error) {
	opts := SendOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	return e.send(payload, recipient, opts.Sender, opts.Parent, trace.SpanContext{})
}

func (e *Engine) send(payload any, recipient, sender core.AgentID, parent *core.CancellationToken, span trace.SpanContext) (*core.PendingResult, error) {
	if !recipient.Valid() {
		return nil, core.ErrInvalidAgentID
	}

	if _, err := e.instance(recipient); err != nil {
		return nil, err
	}

	env, resolve := core.NewEnvelope(payload, sender, recipient)

	unlink := func() {}
	if parent != nil {
		// a settled message no longer needs the cascade
		unlink = parent.Link(env.Token())
		env.Result().OnResolve(unlink)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		unlink()
		return nil, core.ErrRuntimeClosed
	}
	e.queue = append(e.queue, &queued{env: env, resolve: resolve, parent: span})
	depth := len(e.queue)
	e.mu.Unlock()

	e.metrics.MessageEnqueued(recipient.String())
	e.metrics.QueueDepth(depth)
	e.logger.Debug("message enqueued", "msg_id", env.ID(), "msg_type", env.MessageType(), "recipient", recipient, "sender", sender)

	e.signal()

	return env.Result(), nil
}

// instance returns the live agent for id, constructing it on first use.
// Concurrent first sends share one factory invocation.
func (e *Engine) instance(id core.AgentID) (core.Agent, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, core.ErrRuntimeClosed
	}
	reg, ok := e.registry[id]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownAgent, id)
	}
	if reg.agent != nil {
		a := reg.agent
		e.mu.Unlock()
		return a, nil
	}
	e.mu.Unlock()

	v, err, _ := e.constructing.Do(string(id), func() (any, error) {
		e.mu.Lock()
		if reg.agent != nil {
			a := reg.agent
			e.mu.Unlock()
			return a, nil
		}
		e.mu.Unlock()

		a, err := construct(reg.factory)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		reg.agent = a
		e.mu.Unlock()

		e.metrics.AgentConstructed(id.String())
		e.logger.Debug("agent constructed", "agent_id", id, "description", a.Description())

		return a, nil
	})
	if err != nil {
		e.logger.Warn("agent construction failed", "agent_id", id, "error", err)
		return nil, fmt.Errorf("construct agent %q: %w", id, err)
	}

	return v.(core.Agent), nil
}

func construct(factory core.AgentFactory) (a core.Agent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory panic: %v\n%s", r, debug.Stack())
		}
	}()

	a, err = factory()
	if err == nil && a == nil {
		err = fmt.Errorf("factory returned nil agent")
	}

	return a, err
}

// Len returns the number of queued envelopes.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Agents returns the registered identities in registration order.
func (e *Engine) Agents() []core.AgentID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.AgentID(nil), e.order...)
}

// Get returns the constructed instance for id, if any.
func (e *Engine) Get(id core.AgentID) (core.Agent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, ok := e.registry[id]
	if !ok || reg.agent == nil {
		return nil, false
	}

	return reg.agent, true
}

// Close tears the runtime down. Further sends fail with ErrRuntimeClosed.
// Queued envelopes are cancelled and failed with ErrRuntimeClosed; handlers
// suspended in Await are cancelled and resumed with ErrRuntimeClosed, and
// Close waits for them to yield. Outstanding external calls see their
// context cancelled. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	pending := e.queue
	e.queue = nil
	parked := e.ready
	e.ready = nil
	for t := range e.suspended {
		parked = append(parked, t)
	}
	clear(e.suspended)
	e.mu.Unlock()

	e.step.Lock()
	defer e.step.Unlock()

	e.cancel(core.ErrRuntimeClosed)

	for _, q := range pending {
		q.env.Token().Cancel()
		q.resolve(nil, core.ErrRuntimeClosed)
		e.metrics.MessageProcessed(q.env.MessageType(), metrics.OutcomeCancelled)
	}

	for _, t := range parked {
		t.env.Token().Cancel()
		t.resume <- core.ErrRuntimeClosed
		<-e.yield
	}

	e.metrics.QueueDepth(0)
	e.metrics.Suspended(0)
	e.logger.Debug("runtime closed", "dropped", len(pending), "resumed", len(parked))

	e.signal()

	return nil
}

// signal wakes a driver blocked in Drive.
func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}
