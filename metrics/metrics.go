// Package metrics defines the instrumentation hooks used by the runtime and
// model clients, with a no-op default and a Prometheus implementation.
package metrics

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes to record the elapsed time.
type Timer interface {
	ObserveDuration()
}

// Outcome labels for processed messages.
const (
	OutcomeFulfilled = "fulfilled"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Recorder receives runtime and model events. Implementations must be safe
// for concurrent use; external calls report from background goroutines.
type Recorder interface {
	// MessageEnqueued counts an envelope appended to the queue.
	MessageEnqueued(recipient string)
	// DeliveryDuration starts a timer around one handler step.
	DeliveryDuration(msgType string) Timer
	// MessageProcessed counts a settled message by outcome.
	MessageProcessed(msgType, outcome string)
	// HandlerPanic counts a recovered handler panic.
	HandlerPanic(msgType string)
	// QueueDepth reports the number of queued envelopes.
	QueueDepth(depth int)
	// Suspended reports the number of handlers parked in Await.
	Suspended(count int)
	// ExternalCallsInflight reports the number of outstanding external calls.
	ExternalCallsInflight(count int)
	// AgentConstructed counts a lazily constructed agent instance.
	AgentConstructed(agentID string)
	// ModelCallDuration starts a timer around one model request.
	ModelCallDuration(model string) Timer
	// ModelCallCompleted counts a finished model request and its token usage.
	ModelCallCompleted(model string, success bool, tokens int)
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a no-op Timer.
func NopTimer() Timer { return nopTimer{} }

type nopRecorder struct{}

func (nopRecorder) MessageEnqueued(string)               {}
func (nopRecorder) DeliveryDuration(string) Timer        { return nopTimer{} }
func (nopRecorder) MessageProcessed(string, string)      {}
func (nopRecorder) HandlerPanic(string)                  {}
func (nopRecorder) QueueDepth(int)                       {}
func (nopRecorder) Suspended(int)                        {}
func (nopRecorder) ExternalCallsInflight(int)            {}
func (nopRecorder) AgentConstructed(string)              {}
func (nopRecorder) ModelCallDuration(string) Timer       { return nopTimer{} }
func (nopRecorder) ModelCallCompleted(string, bool, int) {}

// Nop returns a Recorder that discards everything.
func Nop() Recorder { return nopRecorder{} }
