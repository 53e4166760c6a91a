// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/geiger/services/geiger/ast"
	"github.com/AleutianAI/geiger/services/geiger/report"
	"github.com/AleutianAI/geiger/services/geiger/scan"
	"github.com/AleutianAI/geiger/services/geiger/server"
	"github.com/AleutianAI/geiger/services/geiger/telemetry"
	"github.com/AleutianAI/geiger/services/geiger/watch"
)

var (
	watchIncludeTests bool
	watchQuiet        bool
	watchListen       string
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Rescan Rust files whenever they change",
	Long: `Scan files or directories once, then rescan each .rs file when it is
created or written, until interrupted.

With --listen the latest result of every file is also served over HTTP:
  GET /v1/health
  GET /v1/results[?path=<file>]
  GET /metrics            (with --metrics prometheus)

Examples:
  geiger watch src
  geiger watch --listen 127.0.0.1:8089 --metrics prometheus .`,
	RunE: runWatchCommand,
}

func init() {
	watchCmd.Flags().BoolVar(&watchIncludeTests, "include-tests", false,
		"Count test functions and test modules")
	watchCmd.Flags().BoolVarP(&watchQuiet, "quiet", "q", false,
		"Suppress per-region diagnostic lines")
	watchCmd.Flags().StringVar(&watchListen, "listen", "",
		"Serve results over HTTP on this address")

	rootCmd.AddCommand(watchCmd)
}

func runWatchCommand(cmd *cobra.Command, args []string) error {
	opts, err := scanOptionsFrom(cmd, appConfig, args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("include-tests") {
		opts.IncludeTests = watchIncludeTests
	}
	opts.Quiet = watchQuiet

	return executeWatch(cmd.Context(), opts, watchListen, cmd.OutOrStdout(), logger)
}

// watchSession rescans changed files and publishes results.
type watchSession struct {
	scanner  *scan.Scanner
	renderer *report.Renderer
	store    *server.Store
	workers  int
	logger   *slog.Logger

	// mu serializes output from the initial scan and handler batches.
	mu sync.Mutex
}

func newWatchSession(opts scanOptions, out io.Writer, logger *slog.Logger) *watchSession {
	var diagnostics io.Writer
	if !opts.Quiet {
		diagnostics = out
	}
	parser := ast.NewRustParser(ast.WithMaxFileSize(opts.MaxFileSize))
	return &watchSession{
		scanner: scan.NewScanner(parser,
			scan.WithPolicy(scan.TestPolicyFor(opts.IncludeTests)),
			scan.WithRegionStats(opts.StatsMode),
			scan.WithDiagnostics(diagnostics),
			scan.WithLogger(logger),
		),
		renderer: report.NewRenderer(out, report.WithColor(opts.Color)),
		store:    server.NewStore(),
		workers:  opts.Workers,
		logger:   logger,
	}
}

// scanPaths scans paths, renders them and stores the results.
func (s *watchSession) scanPaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.scanner.ScanFiles(ctx, paths, s.workers)
	if err != nil {
		return err
	}
	s.store.Update(results)
	return s.renderer.Render(results)
}

// handle is the watch.Handler: removed files are forgotten, everything
// else is rescanned.
func (s *watchSession) handle(ctx context.Context, changes []watch.Change) {
	var rescan []string
	for _, c := range changes {
		switch c.Op {
		case watch.OpRemove, watch.OpRename:
			s.store.Remove(c.Path)
			s.logger.Info("file removed", slog.String("file", c.Path))
		default:
			rescan = append(rescan, c.Path)
		}
	}
	if err := s.scanPaths(ctx, rescan); err != nil && ctx.Err() == nil {
		s.logger.Warn("rescan failed", slog.String("error", err.Error()))
	}
}

// executeWatch runs the initial scan, then watches until ctx is done.
func executeWatch(ctx context.Context, opts scanOptions, listen string, out io.Writer, logger *slog.Logger) error {
	roots := append([]string(nil), opts.Paths...)
	if len(roots) == 0 {
		roots = []string{"."}
	}
	for i, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", r, err)
		}
		roots[i] = abs
	}

	files, err := discoverFiles(roots)
	if err != nil {
		return err
	}

	session := newWatchSession(opts, out, logger)
	if err := session.scanPaths(ctx, files); err != nil {
		return err
	}

	watcher, err := watch.New(session.handle, &watch.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Start(ctx, roots...); err != nil {
		watcher.Stop()
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Stop()
	logger.Info("watching for changes", slog.Int("roots", len(roots)), slog.Int("files", len(files)))

	g, gCtx := errgroup.WithContext(ctx)
	if listen != "" {
		router := server.NewRouter(session.store, displayVersion(), telemetry.MetricsHandler())
		g.Go(func() error {
			return server.Serve(gCtx, listen, router, logger)
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		return nil
	})
	return g.Wait()
}
