package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentrt/core"
)

// FuncAgent adapts a dispatch function to core.Agent.
type FuncAgent struct {
	Desc string
	Fn   func(mc core.MessageContext, payload any) (any, error)
}

// Description implements core.Agent.
func (a *FuncAgent) Description() string { return a.Desc }

// Dispatch implements core.Agent.
func (a *FuncAgent) Dispatch(mc core.MessageContext, payload any) (any, error) {
	return a.Fn(mc, payload)
}

// NewFuncAgent returns a factory building a FuncAgent around fn.
func NewFuncAgent(desc string, fn func(mc core.MessageContext, payload any) (any, error)) core.AgentFactory {
	return func() (core.Agent, error) {
		return &FuncAgent{Desc: desc, Fn: fn}, nil
	}
}

// Unhandled returns the error a type-routed agent reports for payload.
func Unhandled(mc core.MessageContext, payload any) error {
	return core.NewUnhandledError(mc.Recipient(), payload)
}

// PingPong builds an agent answering Ping{N} with Pong{N+1}. Other payloads
// are unhandled.
func PingPong() core.AgentFactory {
	return NewFuncAgent("ping-pong", func(mc core.MessageContext, payload any) (any, error) {
		p, ok := payload.(Ping)
		if !ok {
			return nil, Unhandled(mc, payload)
		}
		return Pong{N: p.N + 1}, nil
	})
}

// CountingFactory wraps factory and counts its invocations.
func CountingFactory(factory core.AgentFactory) (core.AgentFactory, *atomic.Int32) {
	calls := new(atomic.Int32)

	return func() (core.Agent, error) {
		calls.Add(1)
		return factory()
	}, calls
}

// Journal is a goroutine-safe, append-only list of entries that tests use
// to assert delivery order.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

// Add appends an entry.
func (j *Journal) Add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the recorded entries.
func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}
