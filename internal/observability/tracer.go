// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with the span helpers the backplane's
// components use (bus publish, embedding calls, vector search, archive sweeps).
type Tracer struct {
	otel            trace.Tracer
	provider        *sdktrace.TracerProvider
	debugExporter   *DebugExporter
	capturePayloads bool
}

// TracerOption configures a Tracer at construction time.
type TracerOption func(*Tracer)

// WithDebugExporter attaches an in-memory span exporter for inspection endpoints.
func WithDebugExporter(d *DebugExporter) TracerOption {
	return func(t *Tracer) { t.debugExporter = d }
}

// WithCapturePayloads enables recording request/response payloads on spans.
func WithCapturePayloads(enabled bool) TracerOption {
	return func(t *Tracer) { t.capturePayloads = enabled }
}

// NewTracer builds a Tracer from TracingConfig, wiring an OTLP exporter and,
// optionally, an in-memory DebugExporter for local inspection.
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	t := &Tracer{}
	for _, opt := range opts {
		opt(t)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	}
	if t.debugExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(t.debugExporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	t.provider = tp
	t.otel = tp.Tracer(cfg.ServiceName)
	return t, nil
}

// Start begins a generic span.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.otel == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.otel.Start(ctx, name, opts...)
}

// StartBusPublish begins a span around an event bus publish.
func (t *Tracer) StartBusPublish(ctx context.Context, topic string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanBusPublish, trace.WithAttributes(attribute.String(AttrBusTopic, topic)))
}

// StartEmbedCall begins a span around an embedding provider call.
func (t *Tracer) StartEmbedCall(ctx context.Context, provider string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanEmbedCall, trace.WithAttributes(attribute.String(AttrEmbedProvider, provider)))
}

// StartVectorSearch begins a span around a vector store similarity search.
func (t *Tracer) StartVectorSearch(ctx context.Context, provider, collection string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanVectorSearch, trace.WithAttributes(
		attribute.String(AttrEmbedProvider, provider),
		attribute.String(AttrVectorCollection, collection),
	))
}

// StartArchiveSweep begins a span around an auto-archive sweep iteration.
func (t *Tracer) StartArchiveSweep(ctx context.Context) (context.Context, trace.Span) {
	return t.Start(ctx, SpanArchiveSweep)
}

// RecordError marks the span as failed and attaches the error.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(AttrErrorType, err.Error()))
}

// AddPayload attaches a payload attribute to the span, gated by CapturePayloads.
func (t *Tracer) AddPayload(span trace.Span, key, value string) {
	if t == nil || !t.capturePayloads || span == nil {
		return
	}
	span.SetAttributes(attribute.String(key, value))
}

// DebugExporter returns the attached in-memory span exporter, or nil.
func (t *Tracer) DebugExporter() *DebugExporter {
	if t == nil {
		return nil
	}
	return t.debugExporter
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTracer returns a bare OpenTelemetry tracer by name, for code that has no
// Manager handy (e.g. package-level middleware).
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
