// Package observability wires OpenTelemetry tracing for the runtime's
// command line tools.
package observability

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is reported when Config.ServiceName is empty.
const DefaultServiceName = "agentrt"

// Config holds tracing configuration.
type Config struct {
	// ServiceName is the name of the service (defaults to "agentrt").
	ServiceName string

	// ExporterType specifies the exporter: "stdout", "otlp" or "none".
	ExporterType string

	// OTLPEndpoint is the OTLP/HTTP collector endpoint (host:port) used by
	// the "otlp" exporter. Empty uses the SDK default or
	// OTEL_EXPORTER_OTLP_ENDPOINT.
	OTLPEndpoint string

	// OTLPHeaders are sent with every OTLP export request.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool

	// Output receives stdout exporter records. Defaults to os.Stdout.
	Output io.Writer

	// Global installs the provider as the global OpenTelemetry provider.
	Global bool
}

// Provider owns the tracer provider created by Init.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init creates a tracer provider for cfg. With ExporterType "none" the
// returned provider hands out the global (no-op by default) tracer.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)

	switch cfg.ExporterType {
	case "", "none":
		return &Provider{tracer: otel.GetTracerProvider().Tracer(cfg.ServiceName)}, nil
	case "stdout":
		exporter, err = createStdoutExporter(cfg)
	case "otlp":
		exporter, err = createOTLPExporter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}

	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	if cfg.Global {
		otel.SetTracerProvider(tp)
	}

	return &Provider{tp: tp, tracer: tp.Tracer(cfg.ServiceName)}, nil
}

func createStdoutExporter(cfg Config) (sdktrace.SpanExporter, error) {
	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if cfg.Output != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Output))
	}

	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	return exporter, nil
}

func createOTLPExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	var opts []otlptracehttp.Option

	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
	}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
	}

	if cfg.OTLPInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	return exporter, nil
}

// Tracer returns the tracer to hand to the runtime.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	return p.tp.Shutdown(ctx)
}
