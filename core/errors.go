package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateRegistration is returned when an agent identity is bound twice.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrUnknownAgent is returned when a message targets an unregistered identity.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrHandlerTypeConflict is returned when two handlers on one agent claim the
	// same payload type.
	ErrHandlerTypeConflict = errors.New("handler type conflict")

	// ErrUnhandledMessageType is surfaced through a PendingResult when the
	// recipient has no handler for the payload's runtime type.
	ErrUnhandledMessageType = errors.New("unhandled message type")

	// ErrCancelled marks an outcome produced after observing a cancelled token.
	ErrCancelled = errors.New("cancelled")

	// ErrInvalidAgentID is returned for an empty agent identity.
	ErrInvalidAgentID = errors.New("invalid agent id")

	// ErrRuntimeClosed is returned once the runtime has been torn down.
	ErrRuntimeClosed = errors.New("runtime closed")

	// ErrStalled is returned by a driver loop waiting on a result that nothing
	// queued or in flight can ever resolve.
	ErrStalled = errors.New("runtime stalled")

	// ErrNotResolved is returned when reading a PendingResult that has no outcome yet.
	ErrNotResolved = errors.New("result not resolved")
)

// HandlerError wraps a failure raised by a message handler during execution.
type HandlerError struct {
	Agent       AgentID
	MessageType string
	Err         error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler error: agent=%s msg_type=%s: %v", e.Agent, e.MessageType, e.Err)
}

// Unwrap returns the underlying handler error.
func (e *HandlerError) Unwrap() error { return e.Err }

// UnhandledError reports that Agent has no handler for a payload type. It
// matches ErrUnhandledMessageType with errors.Is. The runtime passes it
// through unwrapped only when Agent is the recipient that returned it;
// otherwise it is handled like any other handler failure.
type UnhandledError struct {
	Agent       AgentID
	MessageType string
}

// NewUnhandledError builds the error agent reports for payload.
func NewUnhandledError(agent AgentID, payload any) *UnhandledError {
	return &UnhandledError{Agent: agent, MessageType: TypeName(payload)}
}

// Error implements the error interface.
func (e *UnhandledError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnhandledMessageType, e.MessageType)
}

// Unwrap returns ErrUnhandledMessageType.
func (e *UnhandledError) Unwrap() error { return ErrUnhandledMessageType }
