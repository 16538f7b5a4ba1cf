// Package observability wires OpenTelemetry tracing and metrics for the supervisor.
//
// Setup installs OTLP/gRPC exporters as the global providers. When disabled it
// returns a Provider backed by the global (no-op by default) providers, so the
// decision path records into nothing rather than failing.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // e.g. "localhost:4317"
	SampleRate     float64
	ExportInterval time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns a disabled configuration with sane values for when it is switched on.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "flowguard-supervisor",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		ExportInterval: 15 * time.Second,
		Enabled:        false,
		Insecure:       true,
	}
}

// Provider owns the trace and meter providers created by Setup.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	logger         *slog.Logger
}

// Setup creates the providers described by cfg and installs them globally.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{
		config: cfg,
		logger: slog.Default().With("component", "observability"),
	}
	if !cfg.Enabled {
		p.logger.DebugContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
			attribute.String("flowguard.component", "supervisor"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithSampler(sampler),
	)
	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(interval))),
	)

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.logger.InfoContext(ctx, "observability initialized",
		"service", cfg.ServiceName,
		"endpoint", cfg.OTLPEndpoint,
		"sample_rate", cfg.SampleRate,
	)
	return p, nil
}

// Tracer returns the supervisor tracer from the installed provider.
func (p *Provider) Tracer() trace.Tracer {
	return otel.Tracer(MeterName, trace.WithInstrumentationVersion(p.config.ServiceVersion))
}

// Meter returns the supervisor meter from the installed provider.
func (p *Provider) Meter() metric.Meter {
	return otel.Meter(MeterName, metric.WithInstrumentationVersion(p.config.ServiceVersion))
}

// Shutdown flushes and stops the providers created by Setup.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown trace provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metric provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
