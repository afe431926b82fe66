// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Analyzer is the per-language extraction contract.
//
// Implementations are heuristic and partial-syntax tolerant: they return
// whatever methods they recovered together with structured errors, and only
// return a Go error for conditions the registry converts into a validation
// or runtime result (oversized input, invalid encoding).
//
// Thread Safety: implementations must be safe for concurrent use; each
// Analyze call carries its own state.
type Analyzer interface {
	// Language returns the canonical language this analyzer handles.
	Language() Language

	// Supports reports whether the analyzer handles the given language.
	Supports(lang Language) bool

	// Analyze extracts methods and call sites from the file. The defined set
	// carries the batch-wide definition names (nil during pass 1).
	Analyze(ctx context.Context, file *ParsedFile, defined *DefinedMethodSet) (*Result, error)
}

// Registry maps languages to analyzers and wraps every call in structured
// error handling. Analyzer failures never propagate as Go errors or panics
// past Analyze: callers always receive a Result.
//
// Thread Safety: Registry is immutable after construction and safe for
// concurrent use.
type Registry struct {
	analyzers []Analyzer
}

// NewRegistry creates a registry with the standard analyzer set
// (Ruby, JavaScript, TypeScript, ERB), in that lookup order.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{
		maxFileSize: DefaultMaxFileSize,
		policy:      DefaultExclusionPolicy(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ruby := NewRubyAnalyzer(
		WithRubyMaxFileSize(cfg.maxFileSize),
		WithRubyExclusionPolicy(cfg.policy),
		WithRubyAllowedCalls(cfg.allowedCalls),
	)
	js := NewJavaScriptAnalyzer(WithJavaScriptMaxFileSize(cfg.maxFileSize))
	ts := NewTypeScriptAnalyzer(WithTypeScriptMaxFileSize(cfg.maxFileSize), WithTypeScriptFallback(js))
	erb := NewERBAnalyzer(ruby)

	return &Registry{analyzers: []Analyzer{ruby, js, ts, erb}}
}

// registryConfig holds construction-time settings for the standard analyzers.
type registryConfig struct {
	maxFileSize  int64
	policy       *ExclusionPolicy
	allowedCalls []string
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryConfig)

// WithMaxFileSize sets the per-file content ceiling for all analyzers.
func WithMaxFileSize(bytes int64) RegistryOption {
	return func(c *registryConfig) {
		if bytes > 0 {
			c.maxFileSize = bytes
		}
	}
}

// WithExclusionPolicy sets the definition exclusion policy applied by the
// analyzers. Pass nil to disable exclusion entirely.
func WithExclusionPolicy(p *ExclusionPolicy) RegistryOption {
	return func(c *registryConfig) {
		c.policy = p
	}
}

// WithAllowedCalls adds names the Ruby/ERB call filter accepts even when
// undefined in the scanned files.
func WithAllowedCalls(names []string) RegistryOption {
	return func(c *registryConfig) {
		c.allowedCalls = append(c.allowedCalls, names...)
	}
}

// Lookup returns the first analyzer supporting lang, or nil.
func (r *Registry) Lookup(lang Language) Analyzer {
	for _, a := range r.analyzers {
		if a.Supports(lang) {
			return a
		}
	}
	return nil
}

// Analyze runs the appropriate analyzer for the file's language.
//
// Description:
//
//	Looks up the analyzer, times the call, and converts every failure mode
//	into a structured Result: unsupported languages and nil files become
//	validation-tagged empty results, analyzer Go errors and panics become
//	runtime-tagged empty results. This is the single error boundary of the
//	analysis pipeline.
//
// Outputs:
//   - *Result: never nil. Methods may be empty; Errors carries failures.
func (r *Registry) Analyze(ctx context.Context, file *ParsedFile, defined *DefinedMethodSet) *Result {
	start := time.Now()

	if file == nil {
		return errorResult(Metadata{AnalyzedAtMilli: start.UnixMilli()}, AnalysisError{
			Message:  ErrNilFile.Error(),
			Type:     ErrorTypeValidation,
			Severity: "error",
		})
	}

	meta := Metadata{
		Language:        file.Language.String(),
		FilePath:        file.Path,
		LineCount:       file.TotalLines,
		AnalyzedAtMilli: start.UnixMilli(),
	}

	a := r.Lookup(file.Language)
	if a == nil {
		meta.DurationMicro = time.Since(start).Microseconds()
		return errorResult(meta, AnalysisError{
			Message:  fmt.Sprintf("%s: %s", ErrUnsupportedLanguage, file.Language),
			Type:     ErrorTypeValidation,
			Severity: "error",
		})
	}

	result, err := r.safeAnalyze(ctx, a, file, defined)
	switch {
	case err != nil:
		slog.Error("analyzer failed",
			slog.String("file", file.Path),
			slog.String("language", file.Language.String()),
			slog.String("error", err.Error()))
		meta.DurationMicro = time.Since(start).Microseconds()
		return errorResult(meta, AnalysisError{
			Message:  err.Error(),
			Type:     ErrorTypeRuntime,
			Severity: "error",
		})
	case result == nil:
		meta.DurationMicro = time.Since(start).Microseconds()
		return errorResult(meta, AnalysisError{
			Message:  "analyzer returned nil result",
			Type:     ErrorTypeRuntime,
			Severity: "error",
		})
	}

	if result.Metadata.DurationMicro == 0 {
		result.Metadata.DurationMicro = time.Since(start).Microseconds()
	}
	if result.Metadata.AnalyzedAtMilli == 0 {
		result.Metadata.AnalyzedAtMilli = meta.AnalyzedAtMilli
	}
	return result
}

// safeAnalyze invokes the analyzer with panic recovery.
func (r *Registry) safeAnalyze(ctx context.Context, a Analyzer, file *ParsedFile, defined *DefinedMethodSet) (result *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("analyzer panic: %v", rec)
		}
	}()
	return a.Analyze(ctx, file, defined)
}

// errorResult builds an empty Result carrying a single error.
func errorResult(meta Metadata, errs ...AnalysisError) *Result {
	return &Result{
		Methods:  make([]*Method, 0),
		Errors:   errs,
		Metadata: meta,
	}
}
