// Package observability sets up OpenTelemetry tracing for the engine's spans
// (engine.Handle, catalog.Refresh, propagation.PropagateAll, risk.Evaluate).
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const serviceNamespace = "launchsim"

// TracingConfig selects the exporter and describes this deployment.
type TracingConfig struct {
	Enabled     bool
	Exporter    string  // stdout (default) | otlp
	Endpoint    string  // OTLP gRPC collector, default localhost:4317
	SampleRatio float64 // fraction of root spans kept

	ServiceName string // default: launchsim
	Version     string
	Environment string // e.g. dev, staging, prod
}

// InitTracing installs the global tracer provider and W3C trace-context
// propagation, so a caller's traceparent header joins the engine's spans. With
// tracing disabled a noop provider is installed. The returned function flushes
// and stops the exporter.
func InitTracing(ctx context.Context, cfg TracingConfig, logger *slog.Logger) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		logger.Info("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(serviceAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("building tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled",
		"exporter", cfg.Exporter,
		"endpoint", cfg.Endpoint,
		"sample_ratio", cfg.SampleRatio,
	)
	return tp.Shutdown, nil
}

func serviceAttributes(cfg TracingConfig) []attribute.KeyValue {
	name := cfg.ServiceName
	if name == "" {
		name = "launchsim"
	}
	attrs := []attribute.KeyValue{
		attribute.String("service.name", name),
		attribute.String("service.namespace", serviceNamespace),
	}
	if cfg.Version != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.Version))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	return attrs
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	case "otlp":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q (want stdout or otlp)", cfg.Exporter)
	}
}

// ShutdownWithTimeout flushes pending spans, giving up after 5s.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, logger *slog.Logger) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("tracing shutdown failed", "error", err)
	}
}
