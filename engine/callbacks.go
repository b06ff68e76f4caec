package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrt/core"
)

// CallbackType defines the specific lifecycle points where callbacks can be executed.
//
// Callbacks provide a flexible mechanism for hooking into message delivery
// without modifying scheduler logic. Each type represents a specific point
// in the lifecycle of one envelope:
//   - BeforeDeliver: after dequeue, before the recipient's handler runs
//   - AfterDeliver: after the handler completed and the result was fulfilled
//   - OnError: after the result was failed (handler error, panic, cancellation)
//
// Callbacks are executed synchronously on the scheduler's logical thread.
type CallbackType string

const (
	// CallbackBeforeDeliver is triggered before an envelope is handed to its
	// recipient. Returning an error fails the message with that error and the
	// handler is not run. Use for validation, auditing or admission control.
	CallbackBeforeDeliver CallbackType = "before_deliver"

	// CallbackAfterDeliver is triggered after a handler completed successfully.
	// Errors are logged and otherwise ignored.
	CallbackAfterDeliver CallbackType = "after_deliver"

	// CallbackOnError is triggered when a message's result is failed.
	// Errors are logged and otherwise ignored.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext provides context information for callback execution.
type CallbackContext struct {
	// Envelope is the message being delivered.
	Envelope *core.Envelope

	// AgentID identifies the recipient agent.
	AgentID core.AgentID

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType

	// Value holds the handler result for CallbackAfterDeliver.
	Value any

	// Err holds the failure for CallbackOnError.
	Err error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for delivery lifecycle hooks.
//
// Implementations should be fast: they run while the scheduler holds the
// baton, so a slow callback delays every agent in the runtime.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackBeforeDeliver,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("delivering %s to %s", cc.Envelope.MessageType(), cc.AgentID)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds registered callbacks and executes them in
// registration order. Registration and execution are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new, empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
//
// Callbacks run sequentially in registration order. The first error stops
// execution and is returned; subsequent callbacks are skipped. A panicking
// callback is reported as an error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	for _, callback := range callbacks {
		if err := executeCallback(ctx, callback, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

func executeCallback(ctx context.Context, callback Callback, callbackCtx *CallbackContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s callback panic: %v", callback.Type(), r)
		}
	}()

	return callback.Execute(ctx, callbackCtx)
}

// LoggingCallback forwards delivery lifecycle events to a logging function.
//
// Example:
//
//	cb := NewLoggingCallback(CallbackOnError, func(m string) { log.Print(m) })
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the delivery event. A nil logger function is a no-op.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	message := fmt.Sprintf("[%s] Agent: %s, Envelope: %v", c.callbackType, callbackCtx.AgentID, callbackCtx.Envelope)
	if callbackCtx.Err != nil {
		message += fmt.Sprintf(", Error: %v", callbackCtx.Err)
	}

	c.logger(message)

	return nil
}

// PayloadValidationCallback rejects envelopes whose payload fails validation
// before they reach their recipient.
//
// Example:
//
//	cb := NewPayloadValidationCallback(func(p any) error {
//	    if m, ok := p.(agent.TextMessage); ok && m.Content == "" {
//	        return errors.New("empty message")
//	    }
//	    return nil
//	})
type PayloadValidationCallback struct {
	validator func(payload any) error
}

// NewPayloadValidationCallback creates a new payload validation callback.
func NewPayloadValidationCallback(validator func(payload any) error) *PayloadValidationCallback {
	return &PayloadValidationCallback{
		validator: validator,
	}
}

// Type returns the callback type (always CallbackBeforeDeliver).
func (c *PayloadValidationCallback) Type() CallbackType {
	return CallbackBeforeDeliver
}

// Execute validates the envelope's payload.
func (c *PayloadValidationCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.validator == nil || callbackCtx.Envelope == nil {
		return nil
	}

	if err := c.validator(callbackCtx.Envelope.Payload()); err != nil {
		return fmt.Errorf("payload validation failed: %w", err)
	}

	return nil
}
