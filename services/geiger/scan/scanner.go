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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/geiger/services/geiger/ledger"
	"github.com/AleutianAI/geiger/services/geiger/syntax"
)

// DefaultWorkers bounds ScanFiles concurrency when no worker count is given.
const DefaultWorkers = 4

// Parser produces a syntax tree from source bytes. *ast.RustParser
// implements it.
type Parser interface {
	Parse(ctx context.Context, content []byte, filePath string) (*syntax.File, error)
}

// Result is the outcome of scanning one file.
type Result struct {
	Path    string             `json:"path"`
	Metrics ledger.FileMetrics `json:"metrics"`

	// Depth is the region depth after the scan. Non-zero means a region
	// was opened and never closed.
	Depth uint32 `json:"open_regions"`

	// Diagnostics holds the region lines in closing order, without
	// trailing newlines.
	Diagnostics []string `json:"diagnostics,omitempty"`

	// ParseErrors lists syntax errors tree-sitter recovered from.
	ParseErrors []string `json:"parse_errors,omitempty"`

	// Error is set when the file could not be read or parsed at all. The
	// other fields are then zero.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the file could not be scanned cleanly.
func (r *Result) Failed() bool {
	return r.Error != "" || len(r.ParseErrors) > 0
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithPolicy sets the test inclusion policy. Default: ExcludeTests.
func WithPolicy(p TestPolicy) ScannerOption {
	return func(s *Scanner) {
		s.policy = p
	}
}

// WithRegionStats sets the statistics mode of every visitor. Default:
// StatsSlot.
func WithRegionStats(mode StatsMode) ScannerOption {
	return func(s *Scanner) {
		s.mode = mode
	}
}

// WithDiagnostics sets where diagnostic lines are flushed. A nil writer
// keeps them only on the Result. Default: os.Stdout.
func WithDiagnostics(w io.Writer) ScannerOption {
	return func(s *Scanner) {
		s.out = w
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scanner parses files and runs a fresh RegionVisitor over each.
//
// Description:
//
//	Every scan gets its own visitor and its own diagnostic buffer. Lines
//	are flushed to the configured writer only after the file is done, so
//	output of concurrently scanned files never interleaves.
//
// Thread Safety:
//
//	Safe for concurrent use if the Parser is. Flushing is serialized by
//	the caller of ScanFiles; concurrent ScanSource calls sharing one
//	writer may interleave whole files but never single lines.
type Scanner struct {
	parser Parser
	policy TestPolicy
	mode   StatsMode
	out    io.Writer
	logger *slog.Logger
}

// NewScanner creates a Scanner around parser.
func NewScanner(parser Parser, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		parser: parser,
		policy: ExcludeTests,
		mode:   StatsSlot,
		out:    os.Stdout,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanFile reads path and scans its content.
func (s *Scanner) ScanFile(ctx context.Context, path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return s.ScanSource(ctx, content, path)
}

// ScanSource parses content and scans the resulting tree.
//
// Inputs:
//   - ctx: Passed to the parser.
//   - content: Rust source.
//   - path: Used for the Result and in logs.
//
// Outputs:
//   - *Result: Metrics, depth and diagnostics of the file.
//   - error: Non-nil when the parser fails.
func (s *Scanner) ScanSource(ctx context.Context, content []byte, path string) (*Result, error) {
	res, buf, err := s.scan(ctx, content, path, uuid.NewString())
	if err != nil {
		return nil, err
	}
	s.flush(buf)
	return res, nil
}

// ScanFiles scans paths with at most workers files in flight.
//
// Description:
//
//	Each file is scanned independently; there is no cross-file state.
//	Read and parse failures are recorded on that file's Result.Error and
//	do not stop the other files. Diagnostics are flushed in input order
//	once every file is done.
//
// Outputs:
//   - []*Result: One entry per path, in input order.
//   - error: Only the context error when ctx is canceled.
func (s *Scanner) ScanFiles(ctx context.Context, paths []string, workers int) ([]*Result, error) {
	if workers < 1 {
		workers = DefaultWorkers
	}
	runID := uuid.NewString()
	start := time.Now()

	s.logger.Info("scan started",
		slog.String("run_id", runID),
		slog.Int("files", len(paths)),
		slog.Int("workers", workers),
		slog.String("tests", s.policy.String()),
		slog.String("stats_mode", string(s.mode)))

	results := make([]*Result, len(paths))
	buffers := make([][]byte, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				results[i] = &Result{Path: path, Error: err.Error()}
				return nil
			}
			res, buf, err := s.scan(gCtx, content, path, runID)
			if err != nil {
				if ctxErr := gCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				// Per-file failures are non-fatal.
				results[i] = &Result{Path: path, Error: err.Error()}
				return nil
			}
			results[i] = res
			buffers[i] = buf
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan canceled: %w", err)
	}

	for _, buf := range buffers {
		s.flush(buf)
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	s.logger.Info("scan finished",
		slog.String("run_id", runID),
		slog.Int("files", len(paths)),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

func (s *Scanner) scan(ctx context.Context, content []byte, path string, runID string) (*Result, []byte, error) {
	ctx, span := startScanSpan(ctx, path, runID)
	defer span.End()
	start := time.Now()

	file, err := s.parser.Parse(ctx, content, path)
	if err != nil {
		recordScanMetrics(ctx, time.Since(start), 0, 0, false)
		s.logger.Warn("parse failed",
			slog.String("run_id", runID),
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var buf bytes.Buffer
	v := NewRegionVisitor(s.policy, WithOutput(&buf), WithStatsMode(s.mode))
	syntax.Walk(v, file)

	res := &Result{
		Path:        path,
		Metrics:     v.Metrics(),
		Depth:       v.Depth(),
		Diagnostics: splitLines(buf.Bytes()),
		ParseErrors: file.Errors,
	}

	if res.Depth != 0 {
		s.logger.Warn("trust region left open after scan",
			slog.String("run_id", runID),
			slog.String("file", path),
			slog.Int("depth", int(res.Depth)))
	}
	if len(res.ParseErrors) > 0 {
		s.logger.Warn("source contains syntax errors",
			slog.String("run_id", runID),
			slog.String("file", path),
			slog.Int("errors", len(res.ParseErrors)))
	}
	for _, line := range res.Diagnostics {
		s.logger.Debug("trust region closed",
			slog.String("file", path),
			slog.String("region", line))
	}

	setScanSpanResult(span, res)
	recordScanMetrics(ctx, time.Since(start), v.RegionsClosed(), res.Depth, true)

	return res, buf.Bytes(), nil
}

func (s *Scanner) flush(buf []byte) {
	if s.out == nil || len(buf) == 0 {
		return
	}
	if _, err := s.out.Write(buf); err != nil {
		s.logger.Warn("writing diagnostics failed", slog.String("error", err.Error()))
	}
}

// splitLines splits newline-terminated diagnostic output. Region text is
// rendered on one line, so every line is one region.
func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}
