// Package telemetry initializes the OpenTelemetry tracer provider with a
// Jaeger exporter.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowbase-io/flowbase/internal/platform/config"
)

// Init wires the global tracer provider. Returns a shutdown function and
// a tracer scoped to the service. When telemetry is disabled it installs
// a no-op tracer.
func Init(cfg config.TelemetryConfig, svc config.ServiceConfig) (func(context.Context) error, trace.Tracer, error) {
	if !cfg.Enabled {
		tracer := otel.Tracer(svc.Name)
		return func(context.Context) error { return nil }, tracer, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(svc.Name),
			semconv.ServiceVersion(svc.Version),
			semconv.DeploymentEnvironment(svc.Environment),
		)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, provider.Tracer(svc.Name), nil
}
