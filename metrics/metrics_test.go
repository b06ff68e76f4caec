package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNop(_ *testing.T) {
	r := Nop()
	r.MessageEnqueued("a")
	r.DeliveryDuration("int").ObserveDuration()
	r.MessageProcessed("int", OutcomeFulfilled)
	r.HandlerPanic("int")
	r.QueueDepth(1)
	r.Suspended(1)
	r.ExternalCallsInflight(1)
	r.AgentConstructed("a")
	r.ModelCallDuration("m").ObserveDuration()
	r.ModelCallCompleted("m", true, 3)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.MessageEnqueued("echo")
	m.MessageEnqueued("echo")
	m.DeliveryDuration("int").ObserveDuration()
	m.MessageProcessed("int", OutcomeFulfilled)
	m.MessageProcessed("int", OutcomeFailed)
	m.HandlerPanic("int")
	m.QueueDepth(3)
	m.Suspended(2)
	m.ExternalCallsInflight(1)
	m.AgentConstructed("echo")
	m.ModelCallDuration("gpt").ObserveDuration()
	m.ModelCallCompleted("gpt", true, 10)
	m.ModelCallCompleted("gpt", false, 0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.messagesEnqueued.WithLabelValues("echo")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.messagesProcessed.WithLabelValues("int", OutcomeFailed)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.queueDepth), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.suspended), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(m.modelTokens.WithLabelValues("gpt")), 0)

	expected := `
# HELP agentrt_model_calls_total Total number of model requests
# TYPE agentrt_model_calls_total counter
agentrt_model_calls_total{model="gpt",success="false"} 1
agentrt_model_calls_total{model="gpt",success="true"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "agentrt_model_calls_total"))

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["agentrt_delivery_duration_seconds"])
	assert.True(t, names["agentrt_handler_panics_total"])
	assert.True(t, names["agentrt_agents_constructed_total"])
}

func TestPrometheusRecorder_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheus(reg)
	assert.Panics(t, func() { NewPrometheus(reg) })
}
