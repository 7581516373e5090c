package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "contract-rpc"
	rpcSystem           = "contract-rpc"
)

// TracingMiddleware starts a server span per handled call.
func TracingMiddleware(tp trace.TracerProvider) Middleware {
	tracer := tp.Tracer(instrumentationName)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (any, error) {
			ctx, span := tracer.Start(ctx, call.Name,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("rpc.system", rpcSystem),
					attribute.String("rpc.method", call.Name),
				),
			)
			defer span.End()

			result, err := next(ctx, call)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return result, err
			}
			span.SetStatus(codes.Ok, "")
			return result, nil
		}
	}
}

// MetricsMiddleware counts handled calls and records their duration in seconds.
func MetricsMiddleware(mp metric.MeterProvider) (Middleware, error) {
	meter := mp.Meter(instrumentationName)
	requests, err := meter.Int64Counter("rpc.server.requests",
		metric.WithUnit("{request}"),
		metric.WithDescription("Number of handled calls"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("rpc.server.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of handled calls"),
	)
	if err != nil {
		return nil, err
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)

			status := "ok"
			if err != nil {
				status = "error"
			}
			attrs := metric.WithAttributes(
				attribute.String("rpc.system", rpcSystem),
				attribute.String("rpc.method", call.Name),
				attribute.String("status", status),
			)
			requests.Add(ctx, 1, attrs)
			duration.Record(ctx, time.Since(start).Seconds(), attrs)
			return result, err
		}
	}, nil
}
