// Package telemetry installs the OpenTelemetry providers for briefd.
//
// Metrics are exported through the Prometheus registry already served at
// /metrics, so instrument recordings made against the global meter land on
// the same endpoint as the default process metrics. Traces are exported over
// OTLP gRPC when an endpoint is configured. Telemetry failures do not crash
// the daemon; they degrade gracefully to no-op providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config holds telemetry settings.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// TraceEndpoint is the OTLP gRPC collector address. Empty disables
	// trace export; spans stay no-op.
	TraceEndpoint string
	// Insecure disables transport security on the trace exporter.
	Insecure bool
	// Registerer receives the metric collectors. Nil means the default
	// Prometheus registerer, which is what promhttp serves.
	Registerer prometheus.Registerer
}

// Telemetry owns the installed providers and their shutdown.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	degradedReason string
}

// New initializes the providers and installs them globally. Exporter
// failures leave the corresponding provider unset and are reported through
// DegradedReason rather than as errors.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("service name is required")
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	t := &Telemetry{}

	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
	if err != nil {
		t.setDegraded("metric exporter failed: %v", err)
	} else {
		t.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(t.meterProvider)
	}

	if cfg.TraceEndpoint != "" {
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.TraceEndpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		traceExporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			t.setDegraded("trace exporter failed: %v", err)
		} else {
			t.tracerProvider = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(traceExporter),
				sdktrace.WithResource(res),
				sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
			)
			otel.SetTracerProvider(t.tracerProvider)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

// DegradedReason reports why a provider could not be installed. Empty when
// everything configured came up.
func (t *Telemetry) DegradedReason() string {
	if t == nil {
		return ""
	}
	return t.degradedReason
}

// Shutdown flushes and stops the installed providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (t *Telemetry) setDegraded(format string, args ...any) {
	if t.degradedReason != "" {
		t.degradedReason += "; "
	}
	t.degradedReason += fmt.Sprintf(format, args...)
}
