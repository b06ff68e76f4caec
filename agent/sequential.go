package agent

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentrt/core"
)

// SequentialAgent forwards every payload through a fixed pipeline of agents.
// Each stage receives the previous stage's reply; the last reply becomes the
// pipeline's reply. A stage replying with core.NoReply ends the pipeline
// early.
type SequentialAgent struct {
	BaseAgent
	stages []core.AgentID
}

// NewSequentialAgent creates a pipeline over stages, in order.
func NewSequentialAgent(description string, stages ...core.AgentID) (*SequentialAgent, error) {
	if len(stages) == 0 {
		return nil, errors.New("agent: sequential agent needs at least one stage")
	}

	for _, id := range stages {
		if !id.Valid() {
			return nil, core.ErrInvalidAgentID
		}
	}

	return &SequentialAgent{
		BaseAgent: NewBaseAgent(description),
		stages:    append([]core.AgentID(nil), stages...),
	}, nil
}

// Stages returns the pipeline's recipients in order.
func (s *SequentialAgent) Stages() []core.AgentID {
	return append([]core.AgentID(nil), s.stages...)
}

// Dispatch implements core.Agent.
func (s *SequentialAgent) Dispatch(mc core.MessageContext, payload any) (any, error) {
	current := payload

	for i, id := range s.stages {
		pr, err := mc.Send(current, id)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i+1, id, err)
		}

		reply, err := mc.Await(pr)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i+1, id, err)
		}

		if reply == core.NoReply {
			return core.NoReply, nil
		}

		current = reply
	}

	return current, nil
}

var _ core.Agent = (*SequentialAgent)(nil)
