// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package rowotel provides OpenTelemetry instrumentation for rowhouse
// clients. It implements the [rowhouse.QueryHook] interface to add
// distributed tracing and metrics to query dispatch.
//
// Usage:
//
//	client := rowhouse.NewClient("http://localhost:8123")
//	client = rowotel.InstrumentClient(client, rowotel.DefaultConfig())
package rowotel

import (
	"context"
	"time"

	"github.com/Query-farm/rowhouse/rowhouse"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "rowhouse"

// Config configures OpenTelemetry instrumentation for a rowhouse client.
type Config struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// Propagator injects trace context into outgoing request headers.
	// Defaults to otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed queries.
	// Default true.
	RecordExceptions bool
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns a Config with sensible defaults. TracerProvider,
// MeterProvider, and Propagator are resolved from the global OTel SDK at
// instrumentation time.
func DefaultConfig() Config {
	return Config{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// InstrumentClient returns a copy of the client with OpenTelemetry
// instrumentation installed via [rowhouse.Client.WithQueryHook].
func InstrumentClient(client *rowhouse.Client, cfg Config) *rowhouse.Client {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}

	hook := &otelHook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		hook.queryCounter, _ = meter.Int64Counter("db.client.queries",
			metric.WithUnit("{query}"),
			metric.WithDescription("Number of queries dispatched"),
		)
		hook.durationHistogram, _ = meter.Float64Histogram("db.client.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of queries"),
		)
	}

	return client.WithQueryHook(hook)
}

// otelHook implements rowhouse.QueryHook with OpenTelemetry tracing and metrics.
type otelHook struct {
	cfg               Config
	tracer            trace.Tracer
	queryCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// spanToken is the HookToken returned by OnQueryStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// OnQueryStart starts a client span and injects trace context into the
// outgoing request headers.
func (h *otelHook) OnQueryStart(ctx context.Context, info rowhouse.QueryInfo) (context.Context, rowhouse.HookToken) {
	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	attrs := []attribute.KeyValue{
		attribute.String("db.system", "clickhouse"),
		attribute.String("db.statement", info.Query),
		attribute.String("http.request.method", info.Method),
		attribute.Bool("db.rowhouse.read_only", info.ReadOnly),
	}
	if info.Database != "" {
		attrs = append(attrs, attribute.String("db.namespace", info.Database))
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	ctx, span := h.tracer.Start(ctx, "rowhouse.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	// Propagate trace context to the server (traceparent/tracestate).
	if h.cfg.Propagator != nil && info.Headers != nil {
		h.cfg.Propagator.Inject(ctx, propagation.MapCarrier(info.Headers))
	}

	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnQueryEnd records span attributes, metrics, and ends the span.
func (h *otelHook) OnQueryEnd(ctx context.Context, token rowhouse.HookToken, info rowhouse.QueryInfo, stats *rowhouse.QueryStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	duration := time.Since(st.startTime)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("db.system", "clickhouse"),
			attribute.String("http.request.method", info.Method),
			attribute.String("status", status),
		)
		if h.queryCounter != nil {
			h.queryCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
	}

	if st.span != nil && st.span.IsRecording() {
		if stats != nil {
			st.span.SetAttributes(
				attribute.Int64("db.rowhouse.response_chunks", stats.Chunks),
				attribute.Int64("db.rowhouse.response_bytes", stats.Bytes),
				attribute.Int64("db.rowhouse.rows", stats.Rows),
			)
		}

		if err != nil {
			st.span.SetStatus(codes.Error, err.Error())
			if h.cfg.RecordExceptions {
				st.span.RecordError(err)
			}
		} else {
			st.span.SetStatus(codes.Ok, "")
		}

		st.span.End()
	}
}
