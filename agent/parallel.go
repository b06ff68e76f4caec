package agent

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentrt/core"
)

// Reply is one branch's answer collected by a ParallelAgent.
type Reply struct {
	Agent core.AgentID
	Value any
}

// ParallelReplies is the reply of a ParallelAgent, in branch order.
type ParallelReplies []Reply

// ParallelAgent sends every payload to all of its branches at once and
// replies with every branch's answer. The branches run interleaved on the
// runtime while the ParallelAgent is suspended.
//
// Failing branches do not stop their siblings: all branches are awaited,
// then the errors are joined and returned.
type ParallelAgent struct {
	BaseAgent
	branches []core.AgentID
}

// NewParallelAgent creates a fan-out coordinator over branches.
func NewParallelAgent(description string, branches ...core.AgentID) (*ParallelAgent, error) {
	if len(branches) == 0 {
		return nil, errors.New("agent: parallel agent needs at least one branch")
	}

	seen := make(map[core.AgentID]struct{}, len(branches))

	for _, id := range branches {
		if !id.Valid() {
			return nil, core.ErrInvalidAgentID
		}

		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("agent: duplicate branch %q", id)
		}
		seen[id] = struct{}{}
	}

	return &ParallelAgent{
		BaseAgent: NewBaseAgent(description),
		branches:  append([]core.AgentID(nil), branches...),
	}, nil
}

// Branches returns the recipients of every fan-out.
func (p *ParallelAgent) Branches() []core.AgentID {
	return append([]core.AgentID(nil), p.branches...)
}

// Dispatch implements core.Agent.
func (p *ParallelAgent) Dispatch(mc core.MessageContext, payload any) (any, error) {
	pending := make([]*core.PendingResult, len(p.branches))

	var errs []error

	for i, id := range p.branches {
		pr, err := mc.Send(payload, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("parallel execution failed for agent %s: %w", id, err))
			continue
		}
		pending[i] = pr
	}

	replies := make(ParallelReplies, 0, len(p.branches))

	for i, pr := range pending {
		if pr == nil {
			continue
		}

		v, err := mc.Await(pr)
		if err != nil {
			errs = append(errs, fmt.Errorf("parallel execution failed for agent %s: %w", p.branches[i], err))
			continue
		}

		replies = append(replies, Reply{Agent: p.branches[i], Value: v})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return replies, nil
}

var _ core.Agent = (*ParallelAgent)(nil)
