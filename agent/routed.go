package agent

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/hupe1980/agentrt/core"
)

// HandlerFunc is the type-erased form of a message handler.
type HandlerFunc func(mc core.MessageContext, payload any) (any, error)

// Binding declares that a handler accepts exactly one payload type.
// Build bindings with Handle or HandleMsg.
type Binding struct {
	typ    reflect.Type
	handle HandlerFunc
}

// Type returns the payload type the binding accepts.
func (b Binding) Type() reflect.Type { return b.typ }

// Handle binds a request/response handler to payload type T. The handler's
// return value fulfills the message's PendingResult. T and *T are distinct
// types.
func Handle[T, R any](fn func(mc core.MessageContext, msg T) (R, error)) Binding {
	b := Binding{typ: reflect.TypeFor[T]()}
	if fn != nil {
		b.handle = func(mc core.MessageContext, payload any) (any, error) {
			return fn(mc, payload.(T))
		}
	}
	return b
}

// HandleMsg binds a fire-and-forget handler to payload type T. The message's
// PendingResult is fulfilled with core.NoReply on success.
func HandleMsg[T any](fn func(mc core.MessageContext, msg T) error) Binding {
	b := Binding{typ: reflect.TypeFor[T]()}
	if fn != nil {
		b.handle = func(mc core.MessageContext, payload any) (any, error) {
			if err := fn(mc, payload.(T)); err != nil {
				return nil, err
			}
			return core.NoReply, nil
		}
	}
	return b
}

// TypeRoutedAgent dispatches each payload to the handler bound to its exact
// runtime type. The handler table is fixed at construction.
type TypeRoutedAgent struct {
	BaseAgent
	handlers map[reflect.Type]HandlerFunc
	order    []reflect.Type
}

// NewTypeRoutedAgent builds an agent from bindings. Two bindings for the
// same type fail with core.ErrHandlerTypeConflict and no agent is returned.
func NewTypeRoutedAgent(description string, bindings ...Binding) (*TypeRoutedAgent, error) {
	a := &TypeRoutedAgent{
		BaseAgent: NewBaseAgent(description),
		handlers:  make(map[reflect.Type]HandlerFunc, len(bindings)),
	}

	for _, b := range bindings {
		if b.typ == nil || b.handle == nil {
			return nil, errors.New("agent: empty handler binding")
		}

		if b.typ.Kind() == reflect.Interface {
			return nil, fmt.Errorf("agent: handler type %s must be concrete", b.typ)
		}

		if _, dup := a.handlers[b.typ]; dup {
			return nil, fmt.Errorf("%w: %s", core.ErrHandlerTypeConflict, b.typ)
		}

		a.handlers[b.typ] = b.handle
		a.order = append(a.order, b.typ)
	}

	return a, nil
}

// Dispatch implements core.Agent.
func (a *TypeRoutedAgent) Dispatch(mc core.MessageContext, payload any) (any, error) {
	h, ok := a.handlers[reflect.TypeOf(payload)]
	if !ok {
		return nil, core.NewUnhandledError(mc.Recipient(), payload)
	}

	return h(mc, payload)
}

// AcceptedTypes lists the payload types with a handler, in declaration order.
func (a *TypeRoutedAgent) AcceptedTypes() []reflect.Type {
	return append([]reflect.Type(nil), a.order...)
}

// Accepts reports whether payload's runtime type has a handler.
func (a *TypeRoutedAgent) Accepts(payload any) bool {
	_, ok := a.handlers[reflect.TypeOf(payload)]
	return ok
}

// AwaitAs awaits pr through mc and asserts the reply to T.
func AwaitAs[T any](mc core.MessageContext, pr *core.PendingResult) (T, error) {
	var zero T

	v, err := mc.Await(pr)
	if err != nil {
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("agent: unexpected reply type %s, want %s", core.TypeName(v), reflect.TypeFor[T]())
	}

	return out, nil
}

// SendAndAwait sends payload to recipient as a sub-request and awaits a
// reply of type T.
func SendAndAwait[T any](mc core.MessageContext, payload any, recipient core.AgentID) (T, error) {
	pr, err := mc.Send(payload, recipient)
	if err != nil {
		var zero T
		return zero, err
	}

	return AwaitAs[T](mc, pr)
}

var _ core.Agent = (*TypeRoutedAgent)(nil)
