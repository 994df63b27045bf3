// Package telemetry wires the optional OpenTelemetry trace and metrics
// exporters mcpcore can run alongside its Prometheus endpoint. Both are
// dev/local-facing stdout exporters; a production deployment embedding this
// module is expected to install its own provider before starting the
// server, since otel.SetTracerProvider/SetMeterProvider are process-global.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
)

const metricExportInterval = 15 * time.Second

// Shutdown stops whichever providers SetupTracing/SetupMetrics installed.
type Shutdown func(context.Context) error

// SetupTracing installs a stdouttrace-backed TracerProvider as the global
// provider and returns its Shutdown. Call only when tracing is enabled;
// spans are inexpensive to create but not free, so this is opt-in.
func SetupTracing(w io.Writer) (Shutdown, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// SetupMetrics installs a stdoutmetric-backed MeterProvider, periodically
// dumping instrument state to w, as an alternative to (not a replacement
// for) the Prometheus /metrics endpoint.
func SetupMetrics(w io.Writer) (Shutdown, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metrics exporter: %w", err)
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricExportInterval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
