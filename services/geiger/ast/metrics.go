// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for Rust parsing.
var (
	tracer = otel.Tracer("geiger.ast")
	meter  = otel.Meter("geiger.ast")
)

var (
	parseLatency   metric.Float64Histogram
	parseTotal     metric.Int64Counter
	itemsLowered   metric.Int64Histogram
	parseErrors    metric.Int64Counter
	syntaxErrFiles metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments once. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"geiger_parse_duration_seconds",
			metric.WithDescription("Duration of Rust parse and lowering"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"geiger_parse_total",
			metric.WithDescription("Total number of parse operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		itemsLowered, err = meter.Int64Histogram(
			"geiger_parse_items",
			metric.WithDescription("Number of top-level items lowered per file"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseErrors, err = meter.Int64Counter(
			"geiger_parse_errors_total",
			metric.WithDescription("Total number of failed parse operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		syntaxErrFiles, err = meter.Int64Counter(
			"geiger_parse_syntax_error_files_total",
			metric.WithDescription("Files parsed with tree-sitter ERROR or MISSING nodes"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordParseMetrics records one parse operation.
func recordParseMetrics(ctx context.Context, duration time.Duration, itemCount int, syntaxErrors bool, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", languageRust),
		attribute.Bool("success", success),
	)

	parseLatency.Record(ctx, duration.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)

	if !success {
		parseErrors.Add(ctx, 1)
		return
	}
	itemsLowered.Record(ctx, int64(itemCount))
	if syntaxErrors {
		syntaxErrFiles.Add(ctx, 1)
	}
}

// startParseSpan creates a span for a parse operation. The caller must end
// it.
func startParseSpan(ctx context.Context, filePath string, contentSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "RustParser.Parse",
		trace.WithAttributes(
			attribute.String("ast.language", languageRust),
			attribute.String("ast.file", filePath),
			attribute.Int("ast.content_size", contentSize),
		),
	)
}

// setParseSpanResult sets the result attributes on a parse span.
func setParseSpanResult(span trace.Span, itemCount int, errorCount int) {
	span.SetAttributes(
		attribute.Int("ast.item_count", itemCount),
		attribute.Int("ast.error_count", errorCount),
	)
}
