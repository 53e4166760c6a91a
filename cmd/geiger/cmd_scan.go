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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/geiger/services/geiger/ast"
	"github.com/AleutianAI/geiger/services/geiger/config"
	"github.com/AleutianAI/geiger/services/geiger/diffscope"
	"github.com/AleutianAI/geiger/services/geiger/report"
	"github.com/AleutianAI/geiger/services/geiger/scan"
)

// errScanFailed is returned when at least one file could not be scanned.
var errScanFailed = errors.New("scan failed")

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	scanIncludeTests bool
	scanJSON         bool
	scanQuiet        bool
	scanWorkers      int
	scanStatsMode    string
	scanDiff         string
	scanRoot         string
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Scan Rust files for unsafe usage",
	Long: `Scan files or directories and report unsafe usage per file.

Directories are walked for *.rs files, skipping target/ and hidden
directories. Each file is scanned independently; nothing is aggregated.

Examples:
  geiger scan                       # Scan the working directory
  geiger scan src/lib.rs            # Scan one file
  geiger scan --include-tests src   # Count #[test] fns and #[cfg(test)] mods
  geiger scan --json . > out.json   # JSON output for automation
  git diff | geiger scan --diff -   # Scan only files touched by a diff

Exit Codes:
  0 = Every file scanned
  1 = At least one file failed to read or parse
  2 = Error (bad flags, bad config)`,
	RunE: runScanCommand,
}

func init() {
	scanCmd.Flags().BoolVar(&scanIncludeTests, "include-tests", false,
		"Count test functions and test modules")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false,
		"Output as JSON")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false,
		"Suppress per-region diagnostic lines")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0,
		"Files scanned concurrently (default from config)")
	scanCmd.Flags().StringVar(&scanStatsMode, "stats-mode", "",
		"Region statistics: slot or stack (default from config)")
	scanCmd.Flags().StringVar(&scanDiff, "diff", "",
		"Scan only .rs files touched by this unified diff (- for stdin)")
	scanCmd.Flags().StringVar(&scanRoot, "root", ".",
		"Directory --diff paths are relative to")

	rootCmd.AddCommand(scanCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// scanOptions is the merged result of config file and flags.
type scanOptions struct {
	Paths        []string
	IncludeTests bool
	StatsMode    scan.StatsMode
	Workers      int
	MaxFileSize  int64
	JSON         bool
	Quiet        bool
	Color        bool
	DiffPath     string
	Root         string
}

func runScanCommand(cmd *cobra.Command, args []string) error {
	opts, err := scanOptionsFrom(cmd, appConfig, args)
	if err != nil {
		return err
	}
	return executeScan(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
}

// scanOptionsFrom overlays explicitly set flags on cfg.
func scanOptionsFrom(cmd *cobra.Command, cfg *config.Config, args []string) (scanOptions, error) {
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	opts := scanOptions{
		Paths:        args,
		IncludeTests: cfg.IncludeTests,
		StatsMode:    scan.ParseStatsMode(cfg.StatsMode),
		Workers:      cfg.Workers,
		MaxFileSize:  cfg.MaxFileSize,
		JSON:         scanJSON,
		Quiet:        scanQuiet,
		Color:        colorEnabled(cmd.OutOrStdout()),
		DiffPath:     scanDiff,
		Root:         scanRoot,
	}

	flags := cmd.Flags()
	if flags.Changed("include-tests") {
		opts.IncludeTests = scanIncludeTests
	}
	if flags.Changed("workers") {
		if scanWorkers < 1 {
			return opts, fmt.Errorf("--workers must be at least 1, got %d", scanWorkers)
		}
		opts.Workers = scanWorkers
	}
	if flags.Changed("stats-mode") {
		if scanStatsMode != string(scan.StatsSlot) && scanStatsMode != string(scan.StatsStack) {
			return opts, fmt.Errorf("--stats-mode must be slot or stack, got %q", scanStatsMode)
		}
		opts.StatsMode = scan.StatsMode(scanStatsMode)
	}
	if opts.DiffPath != "" && len(args) > 0 {
		return opts, errors.New("--diff cannot be combined with path arguments")
	}
	return opts, nil
}

// executeScan scans the files selected by opts and renders the report.
//
// Outputs:
//
//	error - errScanFailed (wrapped) when any file failed, any other error
//	        when nothing could be scanned.
func executeScan(ctx context.Context, opts scanOptions, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	files, err := selectFiles(opts, stdin)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Info("no rust files found")
	}

	// JSON mode keeps diagnostic lines on the results only.
	var diagnostics io.Writer
	if !opts.Quiet && !opts.JSON {
		diagnostics = stdout
	}

	parser := ast.NewRustParser(ast.WithMaxFileSize(opts.MaxFileSize))
	scanner := scan.NewScanner(parser,
		scan.WithPolicy(scan.TestPolicyFor(opts.IncludeTests)),
		scan.WithRegionStats(opts.StatsMode),
		scan.WithDiagnostics(diagnostics),
		scan.WithLogger(logger),
	)

	results, err := scanner.ScanFiles(ctx, files, opts.Workers)
	if err != nil {
		return err
	}

	format := report.FormatText
	if opts.JSON {
		format = report.FormatJSON
	} else if diagnostics != nil && len(files) > 0 {
		fmt.Fprintln(stdout)
	}
	renderer := report.NewRenderer(stdout, report.WithFormat(format), report.WithColor(opts.Color))
	if err := renderer.Render(results); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d file(s)", errScanFailed, failed, len(results))
	}
	return nil
}

// selectFiles returns the files named by a diff or discovered from paths.
func selectFiles(opts scanOptions, stdin io.Reader) ([]string, error) {
	if opts.DiffPath == "" {
		return discoverFiles(opts.Paths)
	}

	r := stdin
	if opts.DiffPath != "-" {
		f, err := os.Open(opts.DiffPath)
		if err != nil {
			return nil, fmt.Errorf("opening diff: %w", err)
		}
		defer f.Close()
		r = f
	}

	changed, err := diffscope.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("reading diff %s: %w", opts.DiffPath, err)
	}
	return diffscope.Paths(opts.Root, changed), nil
}

// colorEnabled reports whether w is a terminal and NO_COLOR is unset.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
