// Package engine implements the agent runtime: registration, envelope
// queueing and the cooperative scheduler that delivers messages to agents.
//
// # Core Responsibilities
//
// Agent Management:
//   - Identity registry binding AgentIDs to factories
//   - Lazy construction on first message, deduplicated per identity
//   - Introspection via Agents, Get and Len
//
// Message Delivery:
//   - Strict FIFO queue of envelopes, one envelope per ProcessNext
//   - PendingResult per message, resolved exactly once by the scheduler
//   - Cancellation checked before delivery and propagated to sub-requests
//   - Handler failures and panics captured into the message's result
//
// Scheduling:
//   - One logical thread: a single handler holds the baton at any time
//   - Handlers suspend in MessageContext.Await and are resumed when the
//     awaited result resolves, within the same or a later step
//   - External work runs through MessageContext.Call on background
//     goroutines; outcomes are applied by the scheduler
//
// # Usage Patterns
//
// Registration and a manual driver loop:
//
//	rt := engine.New()
//	_ = rt.Register("echo", func() (core.Agent, error) { return newEcho() })
//
//	pr, err := rt.SendMessage(Ping{N: 5}, "echo")
//	if err != nil {
//	    return err
//	}
//	for !pr.Done() {
//	    rt.ProcessNext()
//	}
//	value, err := pr.Result()
//
// The same with the built-in driver, which also waits for external calls:
//
//	value, err := rt.Drive(ctx, pr)
//
// # Observability
//
// The engine logs through logging.Logger, records metrics through
// metrics.Recorder and starts an OpenTelemetry span per delivered envelope.
// Delivery callbacks (CallbackBeforeDeliver, CallbackAfterDeliver,
// CallbackOnError) hook custom logic into the delivery lifecycle.
package engine
