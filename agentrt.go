// Package agentrt provides a high-level façade over the engine, model and
// configuration packages enabling rapid construction of single-process agent
// systems. Most applications interact with this package by:
//  1. Creating a Runtime via New() or NewFromConfig()
//  2. Registering one or more agents (type-routed, chat completion, custom)
//  3. Sending messages and driving them to completion with Ask
//
// The façade delegates scheduling to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing.
package agentrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrt/cache"
	"github.com/hupe1980/agentrt/config"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/engine"
	"github.com/hupe1980/agentrt/internal/util"
	"github.com/hupe1980/agentrt/logging"
	"github.com/hupe1980/agentrt/metrics"
	"github.com/hupe1980/agentrt/model"
	"github.com/hupe1980/agentrt/model/anthropic"
	"github.com/hupe1980/agentrt/model/bedrock"
	"github.com/hupe1980/agentrt/model/compat"
	"github.com/hupe1980/agentrt/model/gemini"
	"github.com/hupe1980/agentrt/model/gollm"
	"github.com/hupe1980/agentrt/model/openai"
)

// Options configures the Runtime instance.
type Options struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Metrics (defaults to metrics.Nop() if nil)
	Metrics metrics.Recorder

	// Tracer starts delivery spans (defaults to the global provider's tracer)
	Tracer trace.Tracer

	// Callbacks holds delivery lifecycle hooks
	Callbacks *engine.CallbackManager

	// Context is the parent of all handler contexts
	Context context.Context
}

// Runtime is the high-level façade around engine.Engine.
type Runtime struct {
	*engine.Engine
	opts Options

	mu      sync.Mutex
	closers []io.Closer
}

// New creates a Runtime with optional overrides.
func New(optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Logger:  logging.NoOpLogger{},
		Metrics: metrics.Nop(),
		Context: context.Background(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.Tracer = opts.Tracer
		o.Callbacks = opts.Callbacks
		o.Context = opts.Context
	})

	return &Runtime{Engine: e, opts: opts}
}

// NewFromConfig creates a Runtime whose logger follows cfg's log section.
func NewFromConfig(cfg *config.Config, optFns ...func(o *Options)) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	lc, err := cfg.LoggerConfig()
	if err != nil {
		return nil, err
	}
	lc.Component = "runtime"

	logger := logging.New(lc)

	rt := New(append([]func(o *Options){func(o *Options) { o.Logger = logger }}, optFns...)...)

	if cfg.Runtime.ValidatePayloads {
		rt.Callbacks().RegisterCallback(engine.NewPayloadValidationCallback(util.NewSchemaValidator().Validate))
	}

	return rt, nil
}

// Close closes the engine, then every resource the runtime opened on behalf
// of its model clients.
func (r *Runtime) Close() error {
	err := r.Engine.Close()

	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		err = errors.Join(err, closers[i].Close())
	}

	return err
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() logging.Logger { return r.opts.Logger }

// Metrics returns the runtime's metrics recorder.
func (r *Runtime) Metrics() metrics.Recorder { return r.opts.Metrics }

// Ask sends payload to recipient and drives the runtime until the reply is
// available.
func (r *Runtime) Ask(ctx context.Context, payload any, recipient core.AgentID, optFns ...func(o *engine.SendOptions)) (any, error) {
	pr, err := r.SendMessage(payload, recipient, optFns...)
	if err != nil {
		return nil, err
	}

	return r.Drive(ctx, pr)
}

// NewModelClient builds the chat completion client described by cfg. The
// provider client is wrapped with the configured call budget, rate limit and
// timeout, then with the completion cache, so cache hits cost no budget, and
// instrumented with the runtime's metrics recorder and logger. Connections
// opened for the cache are closed by Close.
func (r *Runtime) NewModelClient(ctx context.Context, cfg config.ModelConfig) (model.ChatCompletionClient, error) {
	provider, err := newProviderClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := r.newCacheStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	var client model.ChatCompletionClient = model.NewLimitedClient(provider, func(o *model.LimitOptions) {
		o.MaxCalls = cfg.MaxCalls
		o.RequestsPerSecond = cfg.RequestsPerSecond
		o.Timeout = cfg.Timeout
	})

	if store != nil {
		client = model.NewCachedClient(client, store, func(o *model.CacheOptions) {
			o.TTL = cfg.Cache.TTL
			o.Logger = r.Logger()
		})
	}

	return model.NewInstrumentedClient(client, r.Metrics(), r.Logger()), nil
}

func (r *Runtime) newCacheStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewInMemoryStore(), nil
	case "redis":
		store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.closers = append(r.closers, store)
		r.mu.Unlock()

		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func newProviderClient(ctx context.Context, cfg config.ModelConfig) (model.ChatCompletionClient, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(func(o *openai.Options) {
			o.Model = cfg.Name
			o.APIKey = cfg.OpenAIKey
			o.BaseURL = cfg.BaseURL
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		}), nil
	case "anthropic":
		return anthropic.NewClient(func(o *anthropic.Options) {
			o.Model = cfg.Name
			o.APIKey = cfg.AnthropicKey
			o.MaxTokens = int64(cfg.MaxTokens)
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		}), nil
	case "gemini":
		return gemini.NewClient(ctx, func(o *gemini.Options) {
			o.Model = cfg.Name
			o.APIKey = cfg.GeminiKey
			o.BaseURL = cfg.BaseURL
			o.MaxOutputTokens = cfg.MaxTokens
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		})
	case "bedrock":
		return bedrock.NewClient(ctx, func(o *bedrock.Options) {
			o.Model = cfg.Name
			o.Region = cfg.Region
			o.MaxTokens = cfg.MaxTokens
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		})
	case "gollm":
		return gollm.NewClient(func(o *gollm.Options) {
			o.Provider = cfg.Upstream
			o.Model = cfg.Name
			o.APIKey = cfg.APIKey
			o.MaxTokens = cfg.MaxTokens
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		})
	case "compat", "azure":
		return compat.NewClient(func(o *compat.Options) {
			o.Model = cfg.Name
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.Azure = cfg.Provider == "azure"
			o.MaxTokens = cfg.MaxTokens
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		})
	case "mock", "":
		return model.NewMockClient(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
