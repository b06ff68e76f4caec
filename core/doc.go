// Package core provides the foundational types shared by the runtime, agents
// and handlers:
//
//   - AgentID and the Agent / AgentFactory contracts
//   - Envelope, the unit of queued work
//   - PendingResult, the single-assignment future returned to senders
//   - CancellationToken, the cooperative cancel signal passed to handlers
//   - MessageContext, the handler-scoped view of the runtime
//   - Sentinel errors (ErrUnknownAgent, ErrUnhandledMessageType, ...) and HandlerError
//
// The package keeps scheduling and dispatch out of scope; see the engine and
// agent packages for those.
package core
