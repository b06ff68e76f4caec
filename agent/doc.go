// Package agent contains agent implementations and supporting utilities for
// the agentrt runtime. The package focuses on four concerns:
//
//  1. Identity plumbing shared by concrete agents (BaseAgent)
//  2. Type-routed dispatch: one handler per payload type (TypeRoutedAgent,
//     Handle, HandleMsg, AwaitAs, SendAndAwait)
//  3. A model-backed conversational agent (ChatCompletionAgent)
//  4. Composition over other agents: pipelines (SequentialAgent) and
//     fan-out (ParallelAgent)
//
// Design principles:
//   - The handler table is fixed when the agent is built; conflicts fail
//     construction instead of surfacing at delivery time
//   - Dispatch matches the payload's exact runtime type, so T and *T are
//     different message types
//   - Handlers never block the runtime: model calls go through
//     MessageContext.Call and are awaited with MessageContext.Await
//
// Example:
//
//	echo, err := agent.NewTypeRoutedAgent("echo",
//	    agent.Handle(func(mc core.MessageContext, m agent.TextMessage) (agent.TextMessage, error) {
//	        return agent.TextMessage{Content: m.Content, Source: mc.Recipient().String()}, nil
//	    }),
//	)
package agent
