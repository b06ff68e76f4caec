package model

import (
	"context"
	"time"

	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/metrics"
)

// modelCallLogger is implemented by loggers with a dedicated model call
// record, such as *logging.RuntimeLogger.
type modelCallLogger interface {
	LogModelCall(model string, tokens int, dur time.Duration, err error)
}

// InstrumentedClient records latency, outcome and token usage of every
// Create call.
type InstrumentedClient struct {
	next    ChatCompletionClient
	metrics metrics.Recorder
	logger  logging.Logger
}

// NewInstrumentedClient wraps next. Nil recorder or logger fall back to
// no-op implementations.
func NewInstrumentedClient(next ChatCompletionClient, rec metrics.Recorder, logger logging.Logger) *InstrumentedClient {
	if rec == nil {
		rec = metrics.Nop()
	}

	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &InstrumentedClient{next: next, metrics: rec, logger: logger}
}

// Create implements ChatCompletionClient.
func (c *InstrumentedClient) Create(ctx context.Context, messages []Message) (*Result, error) {
	name := c.next.Info().Name
	start := time.Now()
	timer := c.metrics.ModelCallDuration(name)

	res, err := c.next.Create(ctx, messages)
	timer.ObserveDuration()

	tokens := 0
	if res != nil {
		tokens = res.Usage.Total()
	}

	c.metrics.ModelCallCompleted(name, err == nil, tokens)

	if ml, ok := c.logger.(modelCallLogger); ok {
		ml.LogModelCall(name, tokens, time.Since(start), err)
	} else if err != nil {
		c.logger.Error("Model call failed", "model", name, "error", err)
	} else {
		c.logger.Debug("Model call completed", "model", name, "token_count", tokens)
	}

	return res, err
}

// Info implements ChatCompletionClient.
func (c *InstrumentedClient) Info() Info { return c.next.Info() }
