package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const ServiceName = "testsmith"

// Options selects where telemetry is exported.
type Options struct {
	// Export over OTLP gRPC, configured through the OTEL_EXPORTER_OTLP_* variables.
	UseOTLP bool
	// Destination of the console exporters when UseOTLP is off. Defaults to
	// os.Stderr; stdout is reserved for audit events.
	Writer io.Writer
}

type exporters struct {
	span   trace.SpanExporter
	metric metric.Exporter
	log    log.Exporter
}

func newExporters(ctx context.Context, opts Options) (exporters, error) {
	var (
		ex  exporters
		err error
	)

	if opts.UseOTLP {
		if ex.span, err = otlptracegrpc.New(ctx); err != nil {
			return ex, fmt.Errorf("failed to create otlp trace exporter: %w", err)
		}
		if ex.metric, err = otlpmetricgrpc.New(ctx); err != nil {
			return ex, fmt.Errorf("failed to create otlp metric exporter: %w", err)
		}
		if ex.log, err = otlploggrpc.New(ctx); err != nil {
			return ex, fmt.Errorf("failed to create otlp log exporter: %w", err)
		}
		return ex, nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if ex.span, err = stdouttrace.New(stdouttrace.WithWriter(w)); err != nil {
		return ex, fmt.Errorf("failed to create console trace exporter: %w", err)
	}
	if ex.metric, err = stdoutmetric.New(stdoutmetric.WithWriter(w)); err != nil {
		return ex, fmt.Errorf("failed to create console metric exporter: %w", err)
	}
	if ex.log, err = stdoutlog.New(stdoutlog.WithWriter(w)); err != nil {
		return ex, fmt.Errorf("failed to create console log exporter: %w", err)
	}
	return ex, nil
}

// SetupOTelSDK installs the global tracer, meter and logger providers and the
// propagator. The returned shutdown flushes and stops every provider; it is
// safe to call more than once and is returned even when setup fails.
func SetupOTelSDK(ctx context.Context, opts Options) (func(context.Context) error, error) {
	var stops []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for _, stop := range stops {
			err = errors.Join(err, stop(ctx))
		}
		stops = nil
		return err
	}

	res, err := newResource(ctx)
	if err != nil {
		return shutdown, fmt.Errorf("failed to build resource: %w", err)
	}

	ex, err := newExporters(ctx, opts)
	if err != nil {
		return shutdown, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracerProvider := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.AlwaysSample())),
		trace.WithBatcher(ex.span),
	)
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(ex.metric)),
	)
	loggerProvider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(ex.log)),
	)
	stops = append(stops, tracerProvider.Shutdown, meterProvider.Shutdown, loggerProvider.Shutdown)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	global.SetLoggerProvider(loggerProvider)

	return shutdown, nil
}

// newResource describes this service. OTEL_RESOURCE_ATTRIBUTES and
// OTEL_SERVICE_NAME override the defaults.
func newResource(ctx context.Context) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(ServiceName)),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
}
