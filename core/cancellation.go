package core

import (
	"context"
	"sync"
)

// CancellationToken is a cooperative, advisory cancel signal attached to one
// in-flight message. Cancelling never interrupts a running handler; handlers
// poll IsCancelled (or watch Done) at their suspension points and return
// ErrCancelled when they choose to stop.
//
// The zero value is not usable; construct tokens with NewCancellationToken.
type CancellationToken struct {
	mu        sync.Mutex
	cancelled bool
	callbacks []hook
	nextHook  uint64
	done      chan struct{}
}

type hook struct {
	id uint64
	fn func()
}

// NewCancellationToken returns a token in the not-cancelled state.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

// Cancel marks the token cancelled and runs every linked callback exactly
// once, in registration order, on the calling goroutine. Subsequent calls are
// no-ops.
func (t *CancellationToken) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	callbacks := t.callbacks
	t.callbacks = nil
	close(t.done)
	t.mu.Unlock()

	for _, h := range callbacks {
		h.fn()
	}
}

// IsCancelled reports whether Cancel has been called.
func (t *CancellationToken) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Done returns a channel closed when the token is cancelled.
func (t *CancellationToken) Done() <-chan struct{} { return t.done }

// Err returns ErrCancelled once the token is cancelled, nil otherwise.
func (t *CancellationToken) Err() error {
	if t.IsCancelled() {
		return ErrCancelled
	}
	return nil
}

// LinkOnCancel registers fn to run synchronously inside Cancel. If the token
// is already cancelled fn runs immediately. The returned func unlinks fn; it
// is safe to call more than once and after Cancel.
func (t *CancellationToken) LinkOnCancel(fn func()) (unlink func()) {
	if fn == nil {
		return func() {}
	}

	t.mu.Lock()
	if !t.cancelled {
		t.nextHook++
		id := t.nextHook
		t.callbacks = append(t.callbacks, hook{id: id, fn: fn})
		t.mu.Unlock()

		return func() { t.unlink(id) }
	}
	t.mu.Unlock()

	fn()

	return func() {}
}

func (t *CancellationToken) unlink(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, h := range t.callbacks {
		if h.id == id {
			t.callbacks = append(t.callbacks[:i], t.callbacks[i+1:]...)
			return
		}
	}
}

// Link cancels child whenever t is cancelled, until the returned func is
// called.
func (t *CancellationToken) Link(child *CancellationToken) (unlink func()) {
	if child == nil || child == t {
		return func() {}
	}
	return t.LinkOnCancel(child.Cancel)
}

// Context derives a context from parent that is cancelled, with cause
// ErrCancelled, when the token is cancelled. The returned CancelFunc releases
// the context and unlinks it from the token without cancelling the token.
func (t *CancellationToken) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancelCause(parent)
	unlink := t.LinkOnCancel(func() { cancel(ErrCancelled) })

	return ctx, func() {
		unlink()
		cancel(context.Canceled)
	}
}
