package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope pairs a payload with routing identity, a cancellation token and the
// PendingResult that will carry its outcome. It is created by the runtime when
// a message is sent and consumed exactly once by the scheduler. All fields are
// fixed at construction; only the token's flag and the result's state change.
type Envelope struct {
	id        string
	payload   any
	sender    AgentID
	recipient AgentID
	token     *CancellationToken
	result    *PendingResult
	createdAt time.Time
}

// NewEnvelope builds an envelope with a fresh identifier, a fresh token and an
// unresolved PendingResult. The returned Resolver settles that result and is
// meant for the scheduler alone. An empty sender means the message did not
// originate from an agent.
func NewEnvelope(payload any, sender, recipient AgentID) (*Envelope, Resolver) {
	id := NewID()
	token := NewCancellationToken()
	result, resolve := NewPendingResult(id, token)

	return &Envelope{
		id:        id,
		payload:   payload,
		sender:    sender,
		recipient: recipient,
		token:     token,
		result:    result,
		createdAt: time.Now().UTC(),
	}, resolve
}

// ID returns the envelope's unique identifier.
func (e *Envelope) ID() string { return e.id }

// Payload returns the message value.
func (e *Envelope) Payload() any { return e.payload }

// Sender returns the sending agent and whether there was one.
func (e *Envelope) Sender() (AgentID, bool) { return e.sender, e.sender != "" }

// Recipient returns the addressed agent.
func (e *Envelope) Recipient() AgentID { return e.recipient }

// Token returns the message's cancellation token.
func (e *Envelope) Token() *CancellationToken { return e.token }

// Result returns the message's PendingResult.
func (e *Envelope) Result() *PendingResult { return e.result }

// CreatedAt returns the UTC creation time.
func (e *Envelope) CreatedAt() time.Time { return e.createdAt }

// MessageType returns the Go type name of the payload, used for logging and
// metric labels.
func (e *Envelope) MessageType() string { return TypeName(e.payload) }

// String returns a short representation for debugging.
func (e *Envelope) String() string {
	return fmt.Sprintf("Envelope{ID:%s, Type:%s, Recipient:%s}", e.id, e.MessageType(), e.recipient)
}

// TypeName returns the printable Go type of v ("<nil>" for nil).
func TypeName(v any) string { return fmt.Sprintf("%T", v) }

// NewID generates a new unique identifier for envelopes.
func NewID() string { return uuid.NewString() }
