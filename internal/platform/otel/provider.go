// Package otel configures OpenTelemetry tracing for livegate binaries.
package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/siu-labs/livegate/internal/platform/config"
)

// Config selects the trace exporter. Tracing stays off until Endpoint is set.
type Config struct {
	Endpoint    string  `env:"LIVEGATE_OTEL_ENDPOINT"`
	Enabled     string  `env:"LIVEGATE_OTEL_ENABLED"`
	SampleRatio float64 `env:"LIVEGATE_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Active reports whether spans should be exported.
func (c Config) Active() bool {
	if strings.EqualFold(strings.TrimSpace(c.Enabled), "false") {
		return false
	}
	return strings.TrimSpace(c.Endpoint) != ""
}

// Setup initialises tracing for serviceName from the process environment.
// When tracing is inactive the returned shutdown is a no-op and spans from
// the chain checker, token issuer and room provisioner are dropped.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	return SetupWith(ctx, serviceName, nil)
}

// SetupWith is Setup reading variables through lookup.
func SetupWith(ctx context.Context, serviceName string, lookup func(string) (string, bool)) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var cfg Config
	if err := config.ParseEnvWith(&cfg, lookup); err != nil {
		return noop, err
	}
	if !cfg.Active() {
		return noop, nil
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return noop, fmt.Errorf("LIVEGATE_OTEL_SAMPLE_RATIO must be within [0, 1], got %v", cfg.SampleRatio)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(strings.TrimSpace(cfg.Endpoint)))
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
