// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph builds the caller→callee dependency graph from analyzer
// output and answers navigation queries over it.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/atlasview/codeatlas/analyzer"
)

var tracer = otel.Tracer("codeatlas.graph")

// DefaultMaxEdges caps the extracted edge count for pathological inputs.
const DefaultMaxEdges = 100_000

// DependencyType classifies an edge by file locality.
type DependencyType string

const (
	// DependencyInternal links a caller and callee in the same file.
	DependencyInternal DependencyType = "internal"

	// DependencyExternal links across files.
	DependencyExternal DependencyType = "external"
)

// Endpoint is one side of a dependency edge, anchored to a source line.
type Endpoint struct {
	Name string              `json:"name"`
	File string              `json:"file"`
	Line int                 `json:"line"`
	Kind analyzer.MethodKind `json:"kind"`
}

// Dependency is one aggregated caller→callee edge.
type Dependency struct {
	From  Endpoint       `json:"from"`
	To    Endpoint       `json:"to"`
	Count int            `json:"count"`
	Type  DependencyType `json:"type"`

	// FirstCallLine is the line of the first call site seen for this edge.
	FirstCallLine int `json:"first_call_line"`
}

// Graph is the extracted dependency edge set, in deterministic build order.
type Graph struct {
	Dependencies []*Dependency `json:"dependencies"`

	// Resolved and Unresolved count call sites that did and did not find a
	// callee in the method set.
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

// Extractor turns a flat method list into a dependency graph.
//
// Thread Safety: immutable after construction; each Extract call carries its
// own state.
type Extractor struct {
	maxEdges int
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxEdges sets the edge ceiling.
func WithMaxEdges(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxEdges = n
		}
	}
}

// NewExtractor creates an Extractor with the given options.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{maxEdges: DefaultMaxEdges}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// edgeKey identifies one (caller, callee) pair for aggregation.
type edgeKey struct {
	fromFile string
	fromName string
	fromLine int
	toFile   string
	toName   string
	toLine   int
}

// extractState is the per-call working set.
type extractState struct {
	byName   map[string][]*analyzer.Method // resolution index, scan order
	edges    map[edgeKey]*Dependency
	ordered  []*Dependency
	resolved int
	missed   int
}

// Extract builds the graph from methods, which must be in scan order: the
// resolution ambiguity rule is "current file first, then first match in scan
// order", so order is part of the contract.
//
// Description:
//
//	Every MethodCall on every method is resolved to a callee by name.
//	Resolution prefers a same-file method whose start line equals the call
//	line (which keeps the import↔usage pairs pointing at each other), then
//	any other same-file match, then the first match across all files. One
//	Dependency per (caller, callee) pair; repeated call sites increment
//	Count. Calls that resolve nowhere are counted, not dropped silently.
//	The input methods are never written to: the same results may be shared
//	through the engine cache, so resolution lives on the edges alone.
func (e *Extractor) Extract(ctx context.Context, methods []*analyzer.Method) *Graph {
	ctx, span := tracer.Start(ctx, "graph.extract",
		trace.WithAttributes(attribute.Int("methods.count", len(methods))))
	defer span.End()
	start := time.Now()

	st := &extractState{
		byName: make(map[string][]*analyzer.Method, len(methods)),
		edges:  make(map[edgeKey]*Dependency),
	}
	for _, m := range methods {
		st.byName[m.Name] = append(st.byName[m.Name], m)
	}

	for _, caller := range methods {
		if ctx.Err() != nil {
			break
		}
		for i := range caller.Calls {
			if len(st.ordered) >= e.maxEdges {
				slog.Warn("max dependency edges reached",
					slog.Int("limit", e.maxEdges))
				return e.finish(span, st, start)
			}
			call := &caller.Calls[i]
			callee := resolveCallee(st.byName, caller, call)
			if callee == nil {
				st.missed++
				continue
			}
			st.resolved++
			e.addEdge(st, caller, callee, call)
		}
	}

	return e.finish(span, st, start)
}

// finish assembles the Graph and records the span attributes.
func (e *Extractor) finish(span trace.Span, st *extractState, start time.Time) *Graph {
	g := &Graph{
		Dependencies: st.ordered,
		Resolved:     st.resolved,
		Unresolved:   st.missed,
	}
	span.SetAttributes(
		attribute.Int("edges.count", len(g.Dependencies)),
		attribute.Int("calls.resolved", st.resolved),
		attribute.Int("calls.unresolved", st.missed),
	)
	slog.Debug("dependency extraction complete",
		slog.Int("edges", len(g.Dependencies)),
		slog.Int("resolved", st.resolved),
		slog.Int("unresolved", st.missed),
		slog.Duration("elapsed", time.Since(start)))
	return g
}

// addEdge aggregates one resolved call site into the edge set.
func (e *Extractor) addEdge(st *extractState, caller, callee *analyzer.Method, call *analyzer.MethodCall) {
	key := edgeKey{
		fromFile: caller.FilePath,
		fromName: caller.Name,
		fromLine: caller.StartLine,
		toFile:   callee.FilePath,
		toName:   callee.Name,
		toLine:   callee.StartLine,
	}

	if dep, ok := st.edges[key]; ok {
		dep.Count++
		return
	}

	depType := DependencyExternal
	if caller.FilePath == callee.FilePath {
		depType = DependencyInternal
	}
	dep := &Dependency{
		From: Endpoint{
			Name: caller.Name,
			File: caller.FilePath,
			Line: caller.StartLine,
			Kind: caller.Kind,
		},
		To: Endpoint{
			Name: callee.Name,
			File: callee.FilePath,
			Line: callee.StartLine,
			Kind: callee.Kind,
		},
		Count:         1,
		Type:          depType,
		FirstCallLine: call.Line,
	}
	st.edges[key] = dep
	st.ordered = append(st.ordered, dep)
}

// resolveCallee finds the target method for one call site.
//
// Priority: same-file method starting at the call's line, same-file match,
// then first match in scan order. The caller itself is never its own callee.
// Duplicate names across files resolve to the earliest-scanned definition;
// the ambiguity is accepted and documented rather than guessed around.
func resolveCallee(byName map[string][]*analyzer.Method, caller *analyzer.Method, call *analyzer.MethodCall) *analyzer.Method {
	candidates := byName[call.Name]
	if len(candidates) == 0 {
		return nil
	}

	var sameFile, anyFile *analyzer.Method
	for _, m := range candidates {
		if m == caller {
			continue
		}
		if m.FilePath == caller.FilePath {
			if m.StartLine == call.Line {
				return m
			}
			if sameFile == nil {
				sameFile = m
			}
		} else if anyFile == nil {
			anyFile = m
		}
	}
	if sameFile != nil {
		return sameFile
	}
	return anyFile
}

// String implements fmt.Stringer for debug logs.
func (d *Dependency) String() string {
	return fmt.Sprintf("%s:%d %s -> %s:%d %s (x%d, %s)",
		d.From.File, d.From.Line, d.From.Name,
		d.To.File, d.To.Line, d.To.Name, d.Count, d.Type)
}
