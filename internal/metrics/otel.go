package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/stco/stationrecon/internal/support/logger"
)

// TelemetryConfig selects the OTLP transport. Protocol is "http" or "grpc";
// an empty endpoint disables export entirely.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
	Protocol    string `yaml:"protocol"`
	Insecure    bool   `yaml:"insecure"`
}

// Providers bundles the SDK providers so the app can shut them down in order.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
}

// SetupProviders wires global tracer and meter providers exporting over OTLP.
// With no endpoint configured it returns nil providers and the no-op globals
// stay in place.
func SetupProviders(ctx context.Context, cfg TelemetryConfig) (*Providers, error) {
	if cfg.Endpoint == "" {
		logger.Debugf("telemetry export disabled: no endpoint configured")
		return &Providers{}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	var (
		traceExp  sdktrace.SpanExporter
		metricExp sdkmetric.Exporter
	)
	switch cfg.Protocol {
	case "grpc":
		topts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		mopts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			topts = append(topts, otlptracegrpc.WithInsecure())
			mopts = append(mopts, otlpmetricgrpc.WithInsecure())
		}
		if traceExp, err = otlptracegrpc.New(ctx, topts...); err != nil {
			return nil, fmt.Errorf("otlp trace exporter (grpc): %w", err)
		}
		if metricExp, err = otlpmetricgrpc.New(ctx, mopts...); err != nil {
			return nil, fmt.Errorf("otlp metric exporter (grpc): %w", err)
		}
	case "http", "":
		topts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		mopts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			topts = append(topts, otlptracehttp.WithInsecure())
			mopts = append(mopts, otlpmetrichttp.WithInsecure())
		}
		if traceExp, err = otlptracehttp.New(ctx, topts...); err != nil {
			return nil, fmt.Errorf("otlp trace exporter (http): %w", err)
		}
		if metricExp, err = otlpmetrichttp.New(ctx, mopts...); err != nil {
			return nil, fmt.Errorf("otlp metric exporter (http): %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown otlp protocol %q", cfg.Protocol)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	logger.Infof("telemetry export enabled: %s over %s", cfg.Endpoint, cfg.Protocol)
	return &Providers{Tracer: tp, Meter: mp}, nil
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var firstErr error
	if p.Tracer != nil {
		if err := p.Tracer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.Meter != nil {
		if err := p.Meter.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
