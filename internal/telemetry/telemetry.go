// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package telemetry wires up the process-wide OpenTelemetry TracerProvider
// that internal/wasm's "wasm.eval"/"builtin.*" spans are recorded against.
// It deliberately stops short of wiring an OTLP exporter: this module has no
// outbound RPC transport in scope, so spans are sampled and given real
// trace/span IDs (useful for log correlation via TraceID) but are not
// shipped anywhere without a caller-supplied exporter.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultServiceName = "opawasm"

// Setup installs a process-wide TracerProvider that samples root spans at
// sampleRatio (in [0,1]; values outside that range are clamped) and child
// spans as their parent was sampled, tagged with
// serviceName, and returns a shutdown func to flush and detach it. If
// serviceName is empty, defaultServiceName is used.
func Setup(ctx context.Context, serviceName string, sampleRatio float64) (func(context.Context) error, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	switch {
	case sampleRatio < 0:
		sampleRatio = 0
	case sampleRatio > 1:
		sampleRatio = 1
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// TraceID returns the trace ID recorded on ctx's current span, formatted as
// hex, or "" if ctx carries no span with a trace ID (unsampled spans still
// have one) -- used to correlate a log line
// with the span that produced it.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
