package core

import (
	"context"

	"github.com/hupe1980/agentrt/logging"
)

// AgentID is the stable, process-scoped name an agent is registered under.
// Once assigned it never changes and is bound to at most one live instance.
type AgentID string

// String returns the identifier as a plain string.
func (id AgentID) String() string { return string(id) }

// Valid reports whether the identifier can be registered.
func (id AgentID) Valid() bool { return id != "" }

// Agent defines the contract every addressable actor implements.
//
// Agents are constructed lazily by the runtime (see AgentFactory) and live for
// the lifetime of the runtime. Dispatch is invoked by the scheduler exactly
// once per delivered envelope with the envelope's payload; implementations
// select the handler matching the payload's concrete type and return the
// handler's result. Returning an *UnhandledError naming the recipient (see
// NewUnhandledError) signals that no handler accepts the payload type.
type Agent interface {
	Description() string
	Dispatch(mc MessageContext, payload any) (any, error)
}

// AgentFactory constructs an Agent on first use. A factory returning an error
// (for example ErrHandlerTypeConflict) leaves the identity unconstructed; the
// error is reported to the sender that triggered construction.
type AgentFactory func() (Agent, error)

// MessageContext is the handler-scoped view of the runtime passed to
// Dispatch. It is only valid on the goroutine running the handler and only
// until the handler returns.
type MessageContext interface {
	// Context returns a context that is cancelled once the message's
	// cancellation token is cancelled or the runtime is closed.
	Context() context.Context

	// MessageID returns the unique identifier of the envelope being handled.
	MessageID() string

	// Sender returns the sending agent, if the message was sent by one.
	Sender() (AgentID, bool)

	// Recipient returns the identity of the agent handling the message.
	Recipient() AgentID

	// Token returns the cancellation token attached to the message.
	Token() *CancellationToken

	// Send enqueues a sub-request addressed to recipient. The sub-request's
	// token is linked to this message's token so cancellation cascades.
	Send(payload any, recipient AgentID) (*PendingResult, error)

	// Call runs fn off the scheduler and returns a PendingResult the scheduler
	// resolves with fn's outcome. The context passed to fn is cancelled when
	// this message's token is cancelled.
	Call(fn func(ctx context.Context) (any, error)) *PendingResult

	// Await suspends the handler until pr is resolved, yielding the scheduler
	// to the driver in the meantime, and returns pr's outcome.
	Await(pr *PendingResult) (any, error)

	// Logger returns a logger scoped to the recipient agent.
	Logger() logging.Logger
}
