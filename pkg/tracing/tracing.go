// Package tracing wires OpenTelemetry distributed tracing across the
// orchestrator, storage adapter, and ledger anchor clients via an OTLP
// gRPC exporter.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Config controls the OTLP exporter and sampling behavior.
type Config struct {
	Enabled      bool
	CollectorURL string
	Environment  string
	SampleRate   float64
}

// InitTracer builds and installs a global tracer provider, returning a
// shutdown function to be called during application shutdown. When
// Enabled is false it installs a no-op provider and a no-op shutdown.
func InitTracer(ctx context.Context, cfg Config, log *zap.Logger) (func(context.Context) error, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(otel.GetTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(cfg.CollectorURL),
		otlptracegrpc.WithInsecure(),
	))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", "integrity-spine"),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRate)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if log != nil {
		log.Info("tracer provider installed", zap.String("collector", cfg.CollectorURL), zap.Float64("sample_rate", cfg.SampleRate))
	}

	return provider.Shutdown, nil
}

// Tracer returns a tracer for the given instrumentation name, a thin
// convenience wrapper so call sites don't each import go.opentelemetry.io/otel.
func Tracer(name string) interface {
	Start(ctx context.Context, spanName string) (context.Context, func())
} {
	return &tracerAdapter{name: name}
}

type tracerAdapter struct{ name string }

func (t *tracerAdapter) Start(ctx context.Context, spanName string) (context.Context, func()) {
	ctx, span := otel.Tracer(t.name).Start(ctx, spanName)
	return ctx, func() { span.End() }
}
