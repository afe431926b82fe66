// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command codeatlas analyzes a source tree and emits its method dependency
// graph.
//
// Usage:
//
//	codeatlas analyze --root /path/to/project
//	codeatlas analyze --root /path/to/project --json graph.json
//	codeatlas analyze --root /path/to/project --otel-stdout
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Flag values for the analyze command.
var (
	analyzeRoot string
	analyzeJSON string
	otelStdout  bool
)

var rootCmd = &cobra.Command{
	Use:   "codeatlas",
	Short: "Method analysis and dependency graph engine",
	Long: "codeatlas extracts method definitions and call sites from Ruby, " +
		"JavaScript, TypeScript, and ERB sources and builds a line-accurate " +
		"caller/callee dependency graph.",
	SilenceUsage: true,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a source tree and emit the dependency graph",
	RunE:  runAnalyzeCommand,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRoot, "root", ".", "project root to scan")
	analyzeCmd.Flags().StringVar(&analyzeJSON, "json", "", "write the graph JSON to this file instead of stdout")
	analyzeCmd.Flags().BoolVar(&otelStdout, "otel-stdout", false, "export OpenTelemetry spans to stderr")
	rootCmd.AddCommand(analyzeCmd)
}

// setupTracing installs the stdout span exporter when --otel-stdout is set.
// Returns a shutdown func for the provider (no-op when tracing is off).
func setupTracing() (func(context.Context) error, error) {
	if !otelStdout {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
