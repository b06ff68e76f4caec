package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30,
}

type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// PrometheusRecorder implements Recorder using Prometheus collectors.
type PrometheusRecorder struct {
	messagesEnqueued  *prometheus.CounterVec
	deliveryDuration  *prometheus.HistogramVec
	messagesProcessed *prometheus.CounterVec
	panicsTotal       *prometheus.CounterVec
	queueDepth        prometheus.Gauge
	suspended         prometheus.Gauge
	callsInflight     prometheus.Gauge
	agentsConstructed *prometheus.CounterVec
	modelDuration     *prometheus.HistogramVec
	modelCalls        *prometheus.CounterVec
	modelTokens       *prometheus.CounterVec
}

// NewPrometheus creates a PrometheusRecorder and registers its collectors on
// reg. It panics if a collector is already registered, like MustRegister.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	m := &PrometheusRecorder{
		messagesEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrt_messages_enqueued_total",
			Help: "Total number of envelopes appended to the runtime queue",
		}, []string{"recipient"}),

		deliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentrt_delivery_duration_seconds",
			Help:    "Time a handler held the scheduler per step in seconds",
			Buckets: defaultBuckets,
		}, []string{"message_type"}),

		messagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrt_messages_processed_total",
			Help: "Total number of settled messages by outcome",
		}, []string{"message_type", "outcome"}),

		panicsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrt_handler_panics_total",
			Help: "Total number of recovered handler panics",
		}, []string{"message_type"}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentrt_queue_depth",
			Help: "Current number of queued envelopes",
		}),

		suspended: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentrt_suspended_handlers",
			Help: "Current number of handlers suspended in await",
		}),

		callsInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentrt_external_calls_inflight",
			Help: "Current number of outstanding external calls",
		}),

		agentsConstructed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrt_agents_constructed_total",
			Help: "Total number of lazily constructed agents",
		}, []string{"agent_id"}),

		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentrt_model_call_duration_seconds",
			Help:    "Model request latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"model"}),

		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrt_model_calls_total",
			Help: "Total number of model requests",
		}, []string{"model", "success"}),

		modelTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrt_model_tokens_total",
			Help: "Total number of tokens reported by the model",
		}, []string{"model"}),
	}

	reg.MustRegister(
		m.messagesEnqueued,
		m.deliveryDuration,
		m.messagesProcessed,
		m.panicsTotal,
		m.queueDepth,
		m.suspended,
		m.callsInflight,
		m.agentsConstructed,
		m.modelDuration,
		m.modelCalls,
		m.modelTokens,
	)

	return m
}

func (m *PrometheusRecorder) MessageEnqueued(recipient string) {
	m.messagesEnqueued.WithLabelValues(recipient).Inc()
}

func (m *PrometheusRecorder) DeliveryDuration(msgType string) Timer {
	return newTimer(m.deliveryDuration.WithLabelValues(msgType))
}

func (m *PrometheusRecorder) MessageProcessed(msgType, outcome string) {
	m.messagesProcessed.WithLabelValues(msgType, outcome).Inc()
}

func (m *PrometheusRecorder) HandlerPanic(msgType string) {
	m.panicsTotal.WithLabelValues(msgType).Inc()
}

func (m *PrometheusRecorder) QueueDepth(depth int) { m.queueDepth.Set(float64(depth)) }

func (m *PrometheusRecorder) Suspended(count int) { m.suspended.Set(float64(count)) }

func (m *PrometheusRecorder) ExternalCallsInflight(count int) {
	m.callsInflight.Set(float64(count))
}

func (m *PrometheusRecorder) AgentConstructed(agentID string) {
	m.agentsConstructed.WithLabelValues(agentID).Inc()
}

func (m *PrometheusRecorder) ModelCallDuration(model string) Timer {
	return newTimer(m.modelDuration.WithLabelValues(model))
}

func (m *PrometheusRecorder) ModelCallCompleted(model string, success bool, tokens int) {
	m.modelCalls.WithLabelValues(model, strconv.FormatBool(success)).Inc()
	if tokens > 0 {
		m.modelTokens.WithLabelValues(model).Add(float64(tokens))
	}
}

var _ Recorder = (*PrometheusRecorder)(nil)
