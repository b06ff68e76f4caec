package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentrt"
	"github.com/hupe1980/agentrt/agent"
	"github.com/hupe1980/agentrt/config"
	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/observability"
	"github.com/hupe1980/agentrt/metrics"
)

const assistantID core.AgentID = "assistant"

type chatFlags struct {
	provider    string
	model       string
	instruction string
	message     string
	metricsAddr string
	trace       string
}

func newChatCmd(global *globalFlags) *cobra.Command {
	flags := &chatFlags{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a model-backed assistant agent",
		Long: `Chat with a model-backed assistant agent.

Each input line is sent to the assistant as a text message and the reply is
printed. With --message a single exchange is performed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, global, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.provider, "provider", "p", "", "model provider: "+strings.Join(config.Providers, ", "))
	cmd.Flags().StringVarP(&flags.model, "model", "m", "", "model name")
	cmd.Flags().StringVar(&flags.instruction, "instruction", "", "system instruction")
	cmd.Flags().StringVar(&flags.message, "message", "", "send a single message and exit")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&flags.trace, "trace", "", "trace exporter: none, stdout or otlp")

	return cmd
}

func runChat(cmd *cobra.Command, global *globalFlags, flags *chatFlags) error {
	ctx := cmd.Context()

	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}

	if flags.provider != "" {
		cfg.Model.Provider = flags.provider
		if flags.model == "" {
			cfg.Model.Name = ""
		}
	}
	if flags.model != "" {
		cfg.Model.Name = flags.model
	}
	if flags.instruction != "" {
		cfg.Model.Instruction = flags.instruction
	}
	if flags.metricsAddr != "" {
		cfg.Runtime.MetricsAddr = flags.metricsAddr
	}
	if flags.trace != "" {
		cfg.Runtime.TraceExporter = flags.trace
	}

	cfg.SetDefaults()

	rt, cleanup, err := startRuntime(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()

	if flags.message != "" {
		return exchange(ctx, rt, out, flags.message)
	}

	lines := newLineReader(cmd.InOrStdin(), out)
	defer lines.Close()

	return chatLoop(ctx, rt, lines, out)
}

// startRuntime sets up tracing, metrics and the runtime described by cfg and
// registers the assistant agent. The returned function releases everything.
func startRuntime(cmd *cobra.Command, cfg *config.Config) (*agentrt.Runtime, func(), error) {
	ctx := cmd.Context()

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	tracing, err := observability.Init(ctx, observability.Config{
		ServiceName:  cfg.Runtime.ServiceName,
		ExporterType: cfg.Runtime.TraceExporter,
		Output:       cmd.ErrOrStderr(),
		OTLPEndpoint: cfg.Runtime.OTLPEndpoint,
		OTLPInsecure: cfg.Runtime.OTLPInsecure,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { _ = tracing.Shutdown(context.Background()) })

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt, err := agentrt.NewFromConfig(cfg, func(o *agentrt.Options) {
		o.Metrics = metrics.NewPrometheus(reg)
		o.Tracer = tracing.Tracer()
		o.Context = ctx
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { _ = rt.Close() })

	if cfg.Runtime.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.Runtime.MetricsAddr, reg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, stop)
		rt.Logger().Info("Serving metrics", "addr", cfg.Runtime.MetricsAddr)
	}

	client, err := rt.NewModelClient(ctx, cfg.Model)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var instruction *agent.Instruction
	if cfg.Model.Instruction != "" {
		ins, err := agent.NewInstructionFromTemplate(cfg.Model.Instruction)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("model.instruction: %w", err)
		}
		instruction = &ins
	}

	if err := rt.Register(assistantID, agent.Factory(client, func(o *agent.ChatCompletionAgentOptions) {
		o.Description = "Interactive assistant"
		o.MaxHistoryMessages = 20
		if instruction != nil {
			o.Instruction = *instruction
		}
	})); err != nil {
		cleanup()
		return nil, nil, err
	}

	return rt, cleanup, nil
}

func chatLoop(ctx context.Context, rt *agentrt.Runtime, lines lineReader, out io.Writer) error {
	for {
		line, err := lines.ReadLine("> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, errAborted) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := exchange(ctx, rt, out, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintln(out, "error:", err)
		}
	}
}

func exchange(ctx context.Context, rt *agentrt.Runtime, out io.Writer, text string) error {
	v, err := rt.Ask(ctx, agent.TextMessage{Content: text, Source: "User"}, assistantID)
	if err != nil {
		return err
	}

	reply, ok := v.(agent.TextMessage)
	if !ok {
		return fmt.Errorf("unexpected reply %s", core.TypeName(v))
	}

	fmt.Fprintf(out, "%s: %s\n", reply.Source, reply.Content)

	return nil
}

// serveMetrics exposes reg on addr and returns a function stopping the server.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
