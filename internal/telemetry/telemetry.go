// Package telemetry wires an OpenTelemetry TracerProvider to the broker's
// process lifetime. The broker does not define its own span taxonomy (out
// of scope per spec §1) — this is purely the construct/shutdown plumbing
// other collaborators (e.g. the Assistant CLI's own instrumentation, if
// any propagates into this process) can attach to.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options controls provider construction.
type Options struct {
	Endpoint    string // host:port, e.g. from --otel-endpoint or OTEL_EXPORTER_OTLP_ENDPOINT
	ServiceName string
}

// Provider wraps the constructed TracerProvider and its shutdown hook.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup constructs and registers a global TracerProvider. If opts.Endpoint
// is empty, telemetry is disabled and Setup returns a no-op Provider.
func Setup(ctx context.Context, opts Options) (*Provider, error) {
	if opts.Endpoint == "" {
		return &Provider{}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("constructing otlp exporter: %w", err)
	}

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "acpd"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("constructing otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// Shutdown flushes and stops the provider. Safe to call on a no-op Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
