// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("geiger.scan")
	meter  = otel.Meter("geiger.scan")
)

var (
	scanLatency   metric.Float64Histogram
	scanTotal     metric.Int64Counter
	regionsClosed metric.Int64Counter
	depthLeaks    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		scanLatency, err = meter.Float64Histogram(
			"geiger_scan_duration_seconds",
			metric.WithDescription("Duration of a single file scan including parsing"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		scanTotal, err = meter.Int64Counter(
			"geiger_scan_files_total",
			metric.WithDescription("Total number of scanned files"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		regionsClosed, err = meter.Int64Counter(
			"geiger_scan_regions_closed_total",
			metric.WithDescription("Trust regions that emitted a diagnostic line"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		depthLeaks, err = meter.Int64Counter(
			"geiger_scan_depth_leaks_total",
			metric.WithDescription("Files whose region depth was non-zero after the scan"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordScanMetrics(ctx context.Context, duration time.Duration, closed int, depth uint32, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	scanLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
	scanTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	if !success {
		return
	}
	regionsClosed.Add(ctx, int64(closed))
	if depth != 0 {
		depthLeaks.Add(ctx, 1)
	}
}

func startScanSpan(ctx context.Context, filePath string, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Scanner.ScanSource",
		trace.WithAttributes(
			attribute.String("scan.file", filePath),
			attribute.String("scan.run_id", runID),
		),
	)
}

func setScanSpanResult(span trace.Span, r *Result) {
	span.SetAttributes(
		attribute.Int("scan.regions_closed", len(r.Diagnostics)),
		attribute.Int64("scan.depth", int64(r.Depth)),
		attribute.Int64("scan.exprs_unsafe", int64(r.Metrics.Counters.Exprs.Unsafe)),
	)
}
