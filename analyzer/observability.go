// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the package-level tracer for analyzer spans.
var tracer = otel.Tracer("codeatlas.analyzer")

var (
	metricsOnce     sync.Once
	analyzeDuration metric.Float64Histogram
	methodsCounter  metric.Int64Counter
	errorsCounter   metric.Int64Counter
)

// initMetrics lazily creates the analyzer instruments. Instrument creation
// errors are ignored: the no-op meter returned before SDK installation never
// fails, and a host misconfiguration must not break analysis.
func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("codeatlas.analyzer")
		analyzeDuration, _ = meter.Float64Histogram(
			"codeatlas.analyze.duration",
			metric.WithDescription("Per-file analysis duration"),
			metric.WithUnit("ms"),
		)
		methodsCounter, _ = meter.Int64Counter(
			"codeatlas.analyze.methods",
			metric.WithDescription("Methods extracted"),
		)
		errorsCounter, _ = meter.Int64Counter(
			"codeatlas.analyze.errors",
			metric.WithDescription("Analysis errors recorded"),
		)
	})
}

// startAnalyzeSpan opens the span wrapping one analyzer run.
func startAnalyzeSpan(ctx context.Context, language, filePath string, contentLen int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "analyzer.Analyze",
		trace.WithAttributes(
			attribute.String("language", language),
			attribute.String("file", filePath),
			attribute.Int("content_bytes", contentLen),
		),
	)
}

// setAnalyzeSpanResult records the outcome attributes on the analyze span.
func setAnalyzeSpanResult(span trace.Span, methods, errs int, fallback bool) {
	span.SetAttributes(
		attribute.Int("methods", methods),
		attribute.Int("errors", errs),
		attribute.Bool("fallback", fallback),
	)
}

// recordAnalyzeMetrics records duration and count metrics for one run.
func recordAnalyzeMetrics(ctx context.Context, language string, d time.Duration, methods, errs int) {
	initMetrics()
	attrs := metric.WithAttributes(attribute.String("language", language))
	if analyzeDuration != nil {
		analyzeDuration.Record(ctx, float64(d.Milliseconds()), attrs)
	}
	if methodsCounter != nil && methods > 0 {
		methodsCounter.Add(ctx, int64(methods), attrs)
	}
	if errorsCounter != nil && errs > 0 {
		errorsCounter.Add(ctx, int64(errs), attrs)
	}
}
