/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package trace wraps OpenTelemetry tracer setup, mirroring
// apiserver/cmd/main.go's InitTracer/CloseTracer pair: init failure is
// logged and degraded gracefully rather than blocking startup.
package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

var provider *sdktrace.TracerProvider

// InitTracer configures a global OTLP/gRPC tracer provider for the named
// service. If the collector endpoint is unset or unreachable, the
// returned error should be logged and ignored by the caller: tracing is
// not required for correctness.
func InitTracer(serviceName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName),
	))
	if err != nil {
		return err
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return nil
}

// CloseTracer flushes and shuts down the tracer provider, if one was
// successfully initialized.
func CloseTracer() {
	if provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		klog.Warningf("failed to shut down tracer provider: %v", err)
	}
}

// Tracer returns the named tracer from the global provider (a no-op
// tracer before InitTracer succeeds, or if it was never called).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
