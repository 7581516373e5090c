package main

import (
	"context"
	"errors"
	"os"

	"contract-rpc/config"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// telemetry holds the trace and metric providers handed to the middlewares.
// Disabled telemetry uses no-op providers.
type telemetry struct {
	tracers  trace.TracerProvider
	meters   metric.MeterProvider
	shutdown func(context.Context) error
}

func newTelemetry(cfg config.TelemetryConfig) (*telemetry, error) {
	if !cfg.Enabled {
		return &telemetry{
			tracers:  tracenoop.NewTracerProvider(),
			meters:   metricnoop.NewMeterProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	spans, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, err
	}
	metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(cfg.MetricInterval)),
	))
	return &telemetry{
		tracers: tp,
		meters:  mp,
		shutdown: func(ctx context.Context) error {
			return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
		},
	}, nil
}
