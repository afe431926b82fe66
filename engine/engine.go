// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine runs the two-pass batch analysis: collect every definition
// name across the file set, then analyze each file against the combined set
// so call classification does not depend on file order.
package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/atlasview/codeatlas/analyzer"
)

var tracer = otel.Tracer("codeatlas.engine")

// Engine coordinates batch analysis over the analyzer registry.
//
// Thread Safety: the engine itself is immutable after construction; the
// cache is internally synchronized, so concurrent use is safe.
type Engine struct {
	registry *analyzer.Registry
	cache    *Cache
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry replaces the default analyzer registry.
func WithRegistry(r *analyzer.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithCache replaces the default result cache. Pass nil to disable caching.
func WithCache(c *Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// NewEngine creates an Engine with the standard registry and a
// default-configured cache.
func NewEngine(opts ...Option) *Engine {
	cache, _ := NewCache() // default capacity cannot fail
	e := &Engine{
		registry: analyzer.NewRegistry(),
		cache:    cache,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache exposes the engine's cache handle (nil when caching is disabled).
func (e *Engine) Cache() *Cache { return e.cache }

// CollectDefinitions runs pass 1: analyze every file with no external
// definition knowledge and gather the names of all definition-kind methods.
//
// Outputs:
//   - *DefinedMethodSet: never nil; empty for an empty batch.
func (e *Engine) CollectDefinitions(ctx context.Context, files []*analyzer.ParsedFile) *analyzer.DefinedMethodSet {
	ctx, span := tracer.Start(ctx, "engine.collect_definitions",
		trace.WithAttributes(attribute.Int("files.count", len(files))))
	defer span.End()

	defined := analyzer.NewDefinedMethodSet()
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		result := e.registry.Analyze(ctx, file, nil)
		for _, m := range result.Methods {
			if m.Kind.IsDefinition() {
				defined.Add(m.Name)
			}
		}
	}

	span.SetAttributes(attribute.Int("definitions.count", defined.Len()))
	return defined
}

// AnalyzeFile runs the analyzer for one file against the given definition
// set, consulting the cache for the TypeScript AST path.
func (e *Engine) AnalyzeFile(ctx context.Context, file *analyzer.ParsedFile, defined *analyzer.DefinedMethodSet) *analyzer.Result {
	if file == nil || e.cache == nil || file.Language != analyzer.LanguageTypeScript {
		return e.registry.Analyze(ctx, file, defined)
	}

	key := Key(file, defined)
	if cached := e.cache.Get(key); cached != nil {
		return cached
	}
	result := e.registry.Analyze(ctx, file, defined)
	e.cache.Put(key, result)
	return result
}

// LanguageStats is the per-language slice of a batch run.
type LanguageStats struct {
	Files   int `json:"files"`
	Methods int `json:"methods"`
	Errors  int `json:"errors"`
}

// Statistics summarizes one AnalyzeFiles run.
type Statistics struct {
	Files         int                      `json:"files"`
	Methods       int                      `json:"methods"`
	Errors        int                      `json:"errors"`
	CacheHits     int                      `json:"cache_hits"`
	DurationMicro int64                    `json:"duration_us"`
	ByLanguage    map[string]LanguageStats `json:"by_language"`
}

// AnalyzeFiles runs the full two-pass batch.
//
// Description:
//
//	Pass 1 collects definitions across all files; the collected set is
//	merged with any externally supplied names; pass 2 analyzes each file
//	against the combined set. Files are processed in the order given, and
//	the returned methods preserve file order then source order, so repeated
//	runs over identical input produce identical output.
//
// Inputs:
//   - extra: externally known definition names (nil for none).
//
// Outputs:
//   - []*Method: every extracted method across the batch.
//   - *Statistics: counts and per-language breakdown. Never nil.
func (e *Engine) AnalyzeFiles(ctx context.Context, files []*analyzer.ParsedFile, extra *analyzer.DefinedMethodSet) ([]*analyzer.Method, *Statistics) {
	ctx, span := tracer.Start(ctx, "engine.analyze_files",
		trace.WithAttributes(attribute.Int("files.count", len(files))))
	defer span.End()
	start := time.Now()

	defined := e.CollectDefinitions(ctx, files)
	defined.Merge(extra)

	stats := &Statistics{ByLanguage: make(map[string]LanguageStats)}
	methods := make([]*analyzer.Method, 0, defined.Len())

	for _, file := range files {
		if ctx.Err() != nil {
			slog.Warn("batch analysis interrupted",
				slog.Int("files_done", stats.Files),
				slog.Int("files_total", len(files)))
			break
		}

		result := e.AnalyzeFile(ctx, file, defined)
		methods = append(methods, result.Methods...)

		stats.Files++
		stats.Methods += len(result.Methods)
		stats.Errors += len(result.Errors)
		if result.Metadata.CacheHit {
			stats.CacheHits++
		}

		lang := result.Metadata.Language
		ls := stats.ByLanguage[lang]
		ls.Files++
		ls.Methods += len(result.Methods)
		ls.Errors += len(result.Errors)
		stats.ByLanguage[lang] = ls
	}

	stats.DurationMicro = time.Since(start).Microseconds()
	span.SetAttributes(
		attribute.Int("methods.count", stats.Methods),
		attribute.Int("errors.count", stats.Errors),
	)
	slog.Info("batch analysis complete",
		slog.Int("files", stats.Files),
		slog.Int("methods", stats.Methods),
		slog.Int("errors", stats.Errors),
		slog.Int64("duration_us", stats.DurationMicro))
	return methods, stats
}
