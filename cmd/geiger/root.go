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
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/geiger/services/geiger/config"
	"github.com/AleutianAI/geiger/services/geiger/telemetry"
)

// =============================================================================
// GLOBAL STATE
// =============================================================================

var (
	cfgFile        string
	logLevel       string
	logJSON        bool
	traceExporter  string
	metricExporter string
	otlpEndpoint   string

	// appConfig and logger are set by setup before any subcommand runs.
	appConfig *config.Config
	logger    = slog.Default()

	shutdownTelemetry func(context.Context) error

	rootCmd = &cobra.Command{
		Use:   "geiger",
		Short: "Count unsafe usage in Rust source files",
		Long: `geiger walks Rust source files and counts functions, methods, impls,
traits and expressions inside and outside unsafe regions. Every unsafe
region is reported on one line:

  <region text> ~ <Function|Method|Inner> ~ <exprs> ~ <stmts>[ ~ Dereference Operation]

Configuration is read from geiger.yaml, geiger.yml or geiger.toml in the
working directory unless --config is given. Flags override the file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default: geiger.yaml, geiger.yml or geiger.toml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Write logs as JSON lines")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "traces", "",
		"Trace exporter: none, stdout, otlp (default: $OTEL_TRACES_EXPORTER or none)")
	rootCmd.PersistentFlags().StringVar(&metricExporter, "metrics", "",
		"Metric exporter: none, stdout, prometheus (default: $OTEL_METRICS_EXPORTER or none)")
	rootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "",
		"OTLP gRPC endpoint for --traces otlp")
}

// setup loads configuration and installs logging and telemetry.
func setup(cmd *cobra.Command, _ []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	cfg, path, err := config.Resolve(cfgFile, wd)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
	}
	appConfig = cfg

	logger = telemetry.NewLogger(cmd.ErrOrStderr(), cfg.SlogLevel(), logJSON)
	slog.SetDefault(logger)
	if path != "" {
		logger.Debug("loaded config", slog.String("path", path))
	}

	shutdown, err := telemetry.Init(cmd.Context(), telemetryConfig(cmd))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	shutdownTelemetry = shutdown
	return nil
}

// telemetryConfig applies the telemetry flags over the environment
// defaults.
func telemetryConfig(cmd *cobra.Command) telemetry.Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = displayVersion()
	tcfg.Output = cmd.ErrOrStderr()
	if traceExporter != "" {
		tcfg.TraceExporter = traceExporter
	}
	if metricExporter != "" {
		tcfg.MetricExporter = metricExporter
	}
	if otlpEndpoint != "" {
		tcfg.OTLPEndpoint = otlpEndpoint
	}
	return tcfg
}

// flushTelemetry shuts down the providers installed by setup. It runs
// after the command whether or not it failed.
func flushTelemetry() {
	if shutdownTelemetry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTelemetry(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}
	shutdownTelemetry = nil
}
