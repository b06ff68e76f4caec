package agent

import "sync"

// BaseAgent bundles the identity helpers shared by concrete agents. Embed it
// and supply a Dispatch method to satisfy core.Agent.
type BaseAgent struct {
	mu          sync.RWMutex
	description string
}

// NewBaseAgent constructs a BaseAgent with the given description.
func NewBaseAgent(description string) BaseAgent {
	return BaseAgent{description: description}
}

// Description returns a human readable description of this agent's purpose.
func (b *BaseAgent) Description() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.description
}

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}
