//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

// Package trace provides distributed tracing for the operator runtime.
// It integrates with OpenTelemetry; without Start the global tracer is
// a noop and tracing costs nothing.
package trace

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	instrumentName = "trpc.group/trpc-go/trpc-operator-go"

	// ProtocolGRPC exports traces over OTLP gRPC (the default).
	ProtocolGRPC = "grpc"
	// ProtocolHTTP exports traces over OTLP HTTP.
	ProtocolHTTP = "http"
)

// TracerProvider is the global tracer provider for telemetry.
var TracerProvider trace.TracerProvider = noop.NewTracerProvider()

// Tracer is the global tracer instance for telemetry.
var Tracer trace.Tracer = TracerProvider.Tracer("")

// Option configures tracer bootstrap.
type Option func(*options)

type options struct {
	serviceName string
	endpoint    string
	protocol    string
}

// WithServiceName sets the service name reported on every span.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithEndpoint sets the collector endpoint ("host:port"). If unset,
// the OTEL_EXPORTER_OTLP_TRACES_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT
// environment variables are consulted before the protocol default.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithProtocol selects the export protocol, "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// Start initializes the global tracer with an OTLP exporter and
// returns a cleanup that flushes and shuts the provider down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := options{
		serviceName: "trpc-operator-go",
		protocol:    ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.endpoint == "" {
		o.endpoint = defaultEndpoint(o.protocol)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(o.serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch o.protocol {
	case ProtocolHTTP:
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(o.endpoint),
			otlptracehttp.WithInsecure(),
		)
	default:
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(o.endpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	TracerProvider = provider
	Tracer = otel.Tracer(instrumentName)

	return func() error {
		if err := provider.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}
		return nil
	}, nil
}

func defaultEndpoint(protocol string) string {
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); ep != "" {
		return ep
	}
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
		return ep
	}
	if protocol == ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}
