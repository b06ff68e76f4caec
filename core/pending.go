package core

import (
	"context"
	"sync"
)

// noReply is the type of the NoReply sentinel.
type noReply struct{}

func (noReply) String() string { return "<no reply>" }

// NoReply is the value a PendingResult is fulfilled with when the handler
// produced no value (fire-and-forget handlers).
var NoReply any = noReply{}

// ResultState describes where a PendingResult is in its lifecycle.
type ResultState int

const (
	// ResultUnresolved means no outcome has been assigned yet.
	ResultUnresolved ResultState = iota
	// ResultFulfilled means the result holds a value.
	ResultFulfilled
	// ResultFailed means the result holds an error.
	ResultFailed
)

// String returns a lower-case name for the state.
func (s ResultState) String() string {
	switch s {
	case ResultUnresolved:
		return "unresolved"
	case ResultFulfilled:
		return "fulfilled"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resolver assigns the outcome of a PendingResult. A nil error fulfills the
// result with value; a non-nil error fails it. Only the first call has an
// effect; it reports whether it did.
type Resolver func(value any, err error) bool

// PendingResult is a single-assignment future for the outcome of a message.
// It transitions exactly once from unresolved to fulfilled or failed. Readers
// may be on any goroutine; the writer is whoever holds the Resolver returned
// by NewPendingResult, which for runtime messages is the scheduler.
type PendingResult struct {
	id    string
	token *CancellationToken

	mu       sync.Mutex
	state    ResultState
	value    any
	err      error
	done     chan struct{}
	onSettle []hook
	nextHook uint64
}

// NewPendingResult returns an unresolved result bound to token together with
// the Resolver that settles it.
func NewPendingResult(id string, token *CancellationToken) (*PendingResult, Resolver) {
	if token == nil {
		token = NewCancellationToken()
	}
	pr := &PendingResult{id: id, token: token, done: make(chan struct{})}
	return pr, pr.resolve
}

// ID returns the identifier of the envelope this result belongs to.
func (p *PendingResult) ID() string { return p.id }

// Token returns the cancellation token of the message.
func (p *PendingResult) Token() *CancellationToken { return p.token }

// Cancel cancels the message's token. It does not resolve the result; the
// outcome is decided by the handler or the scheduler.
func (p *PendingResult) Cancel() { p.token.Cancel() }

// State returns the current lifecycle state.
func (p *PendingResult) State() ResultState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done reports whether the result has been fulfilled or failed.
func (p *PendingResult) Done() bool { return p.State() != ResultUnresolved }

// DoneCh returns a channel closed once the result is resolved.
func (p *PendingResult) DoneCh() <-chan struct{} { return p.done }

// Result returns the outcome without blocking. It returns ErrNotResolved while
// the result is still unresolved.
func (p *PendingResult) Result() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == ResultUnresolved {
		return nil, ErrNotResolved
	}
	return p.value, p.err
}

// Wait blocks until the result is resolved or ctx is done. Something else must
// be advancing the runtime meanwhile; a handler awaiting another message must
// use MessageContext.Await instead.
func (p *PendingResult) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnResolve registers fn to run once the result is resolved, on the goroutine
// that resolves it. If the result is already resolved fn runs immediately.
// The returned func removes fn if it has not run yet.
func (p *PendingResult) OnResolve(fn func()) (remove func()) {
	p.mu.Lock()
	if p.state == ResultUnresolved {
		p.nextHook++
		id := p.nextHook
		p.onSettle = append(p.onSettle, hook{id: id, fn: fn})
		p.mu.Unlock()

		return func() { p.removeHook(id) }
	}
	p.mu.Unlock()

	fn()

	return func() {}
}

func (p *PendingResult) removeHook(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, h := range p.onSettle {
		if h.id == id {
			p.onSettle = append(p.onSettle[:i], p.onSettle[i+1:]...)
			return
		}
	}
}

func (p *PendingResult) resolve(value any, err error) bool {
	p.mu.Lock()
	if p.state != ResultUnresolved {
		p.mu.Unlock()
		return false
	}

	if err != nil {
		p.state = ResultFailed
		p.err = err
	} else {
		p.state = ResultFulfilled
		p.value = value
	}

	callbacks := p.onSettle
	p.onSettle = nil
	close(p.done)
	p.mu.Unlock()

	for _, h := range callbacks {
		h.fn()
	}

	return true
}
